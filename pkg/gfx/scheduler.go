package gfx

import (
	"context"
	"errors"
	"time"
)

// ErrSchedulerClosed is returned by a scheduler that will not produce more
// frames. Run treats it as a normal stop.
var ErrSchedulerClosed = errors.New("gfx: scheduler closed")

// Scheduler decides when the next frame runs. Wait blocks until then.
type Scheduler interface {
	Wait(ctx context.Context) error
}

// SchedulerFunc adapts a function, such as a vsync wait, to Scheduler.
type SchedulerFunc func(ctx context.Context) error

func (f SchedulerFunc) Wait(ctx context.Context) error { return f(ctx) }

// TickerScheduler releases one frame per refresh period.
type TickerScheduler struct {
	ticker *time.Ticker
}

func NewTickerScheduler(refreshRate time.Duration) *TickerScheduler {
	if refreshRate <= 0 {
		refreshRate = time.Second / 60
	}
	return &TickerScheduler{ticker: time.NewTicker(refreshRate)}
}

func (s *TickerScheduler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticker.C:
		return nil
	}
}

func (s *TickerScheduler) Stop() {
	s.ticker.Stop()
}

// ManualScheduler releases a frame for every Step call. It drives the frame
// loop from tests and headless tools.
type ManualScheduler struct {
	steps chan struct{}
	done  chan struct{}
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		steps: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Step blocks until a waiting loop takes the frame. It returns false once the
// scheduler is closed.
func (s *ManualScheduler) Step() bool {
	select {
	case s.steps <- struct{}{}:
		return true
	case <-s.done:
		return false
	}
}

func (s *ManualScheduler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSchedulerClosed
	case <-s.steps:
		return nil
	}
}

// Close makes pending and future waits return ErrSchedulerClosed. It must be
// called once.
func (s *ManualScheduler) Close() {
	close(s.done)
}
