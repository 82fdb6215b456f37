package host_test

import (
	"testing"
	"time"

	"github.com/kjkrol/gokpick/pkg/host"
)

type scriptedPoller struct {
	events   []host.Event
	timeouts []time.Duration
}

func (p *scriptedPoller) poll(timeout time.Duration) (host.Event, bool) {
	p.timeouts = append(p.timeouts, timeout)
	if len(p.events) == 0 {
		return nil, false
	}
	ev := p.events[0]
	p.events = p.events[1:]
	return ev, true
}

func TestStrategies(t *testing.T) {
	tests := []struct {
		name      string
		strategy  host.EventsConsumerStrategy
		queued    int
		wantCount int
		wantLeft  int
	}{
		{"drain all", host.DrainAll(), 5, 5, 0},
		{"drain all empty", host.DrainAll(), 0, 0, 0},
		{"drain max below queue", host.DrainMax(2), 5, 2, 3},
		{"drain max above queue", host.DrainMax(10), 3, 3, 0},
		{"drain max zero handles one", host.DrainMax(0), 3, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedPoller{}
			for i := 0; i < tt.queued; i++ {
				p.events = append(p.events, host.PointerMove{X: float64(i)})
			}
			var handled []host.Event
			n := tt.strategy.Consume(p.poll, func(e host.Event) { handled = append(handled, e) }, 10*time.Millisecond)
			if n != tt.wantCount || len(handled) != tt.wantCount {
				t.Errorf("handled %d (reported %d), want %d", len(handled), n, tt.wantCount)
			}
			if len(p.events) != tt.wantLeft {
				t.Errorf("%d events left, want %d", len(p.events), tt.wantLeft)
			}
			if p.timeouts[0] != 10*time.Millisecond {
				t.Errorf("first poll waited %v, want 10ms", p.timeouts[0])
			}
			for i, d := range p.timeouts[1:] {
				if d != 0 {
					t.Errorf("poll %d waited %v, want 0", i+1, d)
				}
			}
		})
	}
}
