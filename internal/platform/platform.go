// Package platform holds what the window backends share. Each backend lives
// in its own subpackage so a binary links only the one it uses.
package platform

import (
	"time"

	"github.com/kjkrol/gokpick/pkg/host"
)

type WindowConfig struct {
	PositionX   int
	PositionY   int
	Width       int
	Height      int
	BorderWidth int
	Title       string
	VSync       bool
}

// EventQueue buffers events raised by platform callbacks until the host
// loop polls them.
type EventQueue struct {
	events chan host.Event
}

func NewEventQueue(size int) *EventQueue {
	if size <= 0 {
		size = 1024
	}
	return &EventQueue{events: make(chan host.Event, size)}
}

// Push enqueues ev without blocking. It returns false when the queue is
// full and the event was dropped.
func (q *EventQueue) Push(ev host.Event) bool {
	select {
	case q.events <- ev:
		return true
	default:
		return false
	}
}

// Pop returns a queued event without waiting.
func (q *EventQueue) Pop() (host.Event, bool) {
	select {
	case ev := <-q.events:
		return ev, true
	default:
		return nil, false
	}
}

// Wait returns the next event or gives up after timeout.
func (q *EventQueue) Wait(timeout time.Duration) (host.Event, bool) {
	if ev, ok := q.Pop(); ok || timeout <= 0 {
		return ev, ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-q.events:
		return ev, true
	case <-timer.C:
		return nil, false
	}
}

func (q *EventQueue) Len() int { return len(q.events) }
