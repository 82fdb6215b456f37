package host

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/kjkrol/gokpick/pkg/gfx"
)

// Window is a platform surface the loop presents frames to.
type Window interface {
	// NextEvent waits up to timeout for an event.
	NextEvent(timeout time.Duration) (Event, bool)
	// Present makes the frame drawn to the default framebuffer visible.
	Present() error
	// Size is the drawable size in device pixels.
	Size() (width, height int)
	// ClientSize is the size pointer positions are reported in.
	ClientSize() (width, height float64)
	// GLContext returns the native context a GPU device is opened on, or
	// nil when the window displays software frames.
	GLContext() any
	Close()
}

const (
	maxEventWait       = 50 * time.Millisecond
	defaultRefreshRate = 60
)

type LoopOption func(*Loop)

// WithRefreshRate sets the target frames per second.
func WithRefreshRate(fps int) LoopOption {
	return func(l *Loop) {
		if fps <= 0 {
			fps = defaultRefreshRate
		}
		l.delay = time.Second / time.Duration(fps)
	}
}

func WithStrategy(s EventsConsumerStrategy) LoopOption {
	return func(l *Loop) { l.strategy = s }
}

// WithEventHandler registers fn to see every event after the loop has
// applied it.
func WithEventHandler(fn func(Event)) LoopOption {
	return func(l *Loop) { l.handlers = append(l.handlers, fn) }
}

// WithFrameHandler registers fn to run after each presented frame.
func WithFrameHandler(fn func(gfx.FrameResult)) LoopOption {
	return func(l *Loop) { l.onFrame = fn }
}

// Loop owns the thread the window's context lives on. It alternates between
// waiting for events and ticking the driver once per refresh period.
type Loop struct {
	win      Window
	driver   *gfx.FrameDriver
	viewport *gfx.Viewport
	strategy EventsConsumerStrategy
	delay    time.Duration
	handlers []func(Event)
	onFrame  func(gfx.FrameResult)

	stopOnce sync.Once
	stop     chan struct{}
}

func NewLoop(win Window, driver *gfx.FrameDriver, viewport *gfx.Viewport, opts ...LoopOption) *Loop {
	l := &Loop{
		win:      win,
		driver:   driver,
		viewport: viewport,
		strategy: DrainAll(),
		delay:    time.Second / defaultRefreshRate,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stop makes Run return after the current iteration. Safe to call from any
// goroutine, more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Loop) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is cancelled, Stop is called, the window asks to
// close, or a frame fails. Only a failed frame or present returns an error.
func (l *Loop) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gfx.Logger().Info("host loop started", "refresh", l.delay)
	nextRender := time.Now()
	frames := 0
	defer func() { gfx.Logger().Info("host loop finished", "frames", frames) }()

	for {
		if ctx.Err() != nil || l.stopped() {
			return nil
		}
		l.strategy.Consume(l.win.NextEvent, l.HandleEvent, eventWait(nextRender, time.Now()))
		if l.stopped() {
			return nil
		}

		now := time.Now()
		if now.Before(nextRender) {
			continue
		}
		res, err := l.driver.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := l.win.Present(); err != nil {
			return fmt.Errorf("present frame %d: %w", res.Index, err)
		}
		frames++
		if l.onFrame != nil {
			l.onFrame(res)
		}
		nextRender = now.Add(l.delay)
	}
}

// eventWait is how long the loop may block on events before the next frame
// is due, capped so the stop signal is noticed promptly.
func eventWait(nextRender, now time.Time) time.Duration {
	wait := nextRender.Sub(now)
	if wait < 0 {
		return 0
	}
	return min(wait, maxEventWait)
}

// HandleEvent applies one window event: pointer motion sets the pick query,
// leaving clears it, resizes are forwarded to the driver, and Escape or a
// close request stops the loop.
func (l *Loop) HandleEvent(e Event) {
	switch ev := e.(type) {
	case PointerMove:
		l.driver.SetQuery(l.viewport.Pointer(ev.X, ev.Y))
	case PointerLeave:
		l.driver.ClearQuery()
	case Resize:
		if ev.Width <= 0 || ev.Height <= 0 {
			// minimized
			break
		}
		if l.viewport.Set(ev.Width, ev.Height, ev.ClientWidth, ev.ClientHeight) {
			if err := l.driver.RequestResize(ev.Width, ev.Height); err != nil {
				gfx.Logger().Warn("resize rejected", "event", ev, "err", err)
			}
		}
	case KeyPress:
		if ev.Label == "Escape" {
			l.Stop()
		}
	case CloseRequest:
		l.Stop()
	}
	for _, h := range l.handlers {
		h(e)
	}
}
