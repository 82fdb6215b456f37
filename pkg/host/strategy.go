package host

import "time"

// Poller waits up to timeout for the next window event. ok is false when
// the wait expired.
type Poller func(timeout time.Duration) (ev Event, ok bool)

// EventsConsumerStrategy decides how many queued events are handled before
// the loop gets back to rendering. Only the first poll waits; the rest
// drain what is already queued.
type EventsConsumerStrategy interface {
	Consume(poll Poller, handle func(Event), timeout time.Duration) int
}

type DrainAllStrategy struct{}

func (DrainAllStrategy) Consume(poll Poller, handle func(Event), timeout time.Duration) int {
	return drain(poll, handle, timeout, 0)
}

// DrainMaxStrategy bounds the events handled per frame so a burst of
// pointer motion cannot starve rendering.
type DrainMaxStrategy struct {
	Max int
}

func (s DrainMaxStrategy) Consume(poll Poller, handle func(Event), timeout time.Duration) int {
	return drain(poll, handle, timeout, max(s.Max, 1))
}

func DrainAll() EventsConsumerStrategy { return DrainAllStrategy{} }

func DrainMax(n int) EventsConsumerStrategy { return DrainMaxStrategy{Max: n} }

// drain handles events until poll reports none or limit is reached. A
// non-positive limit means no limit.
func drain(poll Poller, handle func(Event), timeout time.Duration, limit int) int {
	count := 0
	for limit <= 0 || count < limit {
		ev, ok := poll(timeout)
		if !ok {
			break
		}
		handle(ev)
		count++
		timeout = 0
	}
	return count
}
