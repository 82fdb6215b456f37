package gfx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// FrameInfo describes the frame a FrameSource is asked to fill.
type FrameInfo struct {
	Index   uint64
	Elapsed time.Duration
	Delta   time.Duration
	Width   int
	Height  int
}

// FrameSource supplies the instance records of each frame. The batch is
// empty when BuildFrame is called and is uploaded wholesale afterwards.
type FrameSource interface {
	BuildFrame(info FrameInfo, batch *InstanceBatch) error
}

type FrameSourceFunc func(info FrameInfo, batch *InstanceBatch) error

func (f FrameSourceFunc) BuildFrame(info FrameInfo, batch *InstanceBatch) error {
	return f(info, batch)
}

type FrameResult struct {
	Index     uint64
	Target    EntityID
	Instances int
}

type DriverState int

const (
	StateIdle DriverState = iota
	StateRunning
	// StateStopped is entered after a frame failed. Every later Tick
	// returns ErrStopped.
	StateStopped
)

func (s DriverState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type DriverOption func(*FrameDriver)

// WithClock replaces time.Now for frame timing.
func WithClock(now func() time.Time) DriverOption {
	return func(d *FrameDriver) { d.now = now }
}

// WithPickHandler registers fn to run on the frame goroutine whenever the
// entity under the query coordinate changes.
func WithPickHandler(fn func(prev, next EntityID)) DriverOption {
	return func(d *FrameDriver) { d.onPick = fn }
}

type resizeRequest struct {
	width, height int
}

// FrameDriver runs frames on a Pipeline. Tick and Run must be called from
// one goroutine, the one owning the device. SetQuery, ClearQuery and
// RequestResize may be called from any goroutine; their effects are applied
// at the next frame boundary.
type FrameDriver struct {
	pipeline *Pipeline
	source   FrameSource
	batch    *InstanceBatch
	now      func() time.Time
	onPick   func(prev, next EntityID)

	state  DriverState
	err    error
	index  uint64
	start  time.Time
	last   time.Time
	target EntityID

	mu     sync.Mutex
	query  Coord
	resize *resizeRequest
}

func NewFrameDriver(p *Pipeline, source FrameSource, opts ...DriverOption) *FrameDriver {
	d := &FrameDriver{
		pipeline: p,
		source:   source,
		batch:    NewInstanceBatch(),
		now:      time.Now,
		query:    NoQuery,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *FrameDriver) State() DriverState { return d.state }

// Err returns the error that stopped the driver, if any.
func (d *FrameDriver) Err() error { return d.err }

func (d *FrameDriver) SetQuery(c Coord) {
	d.mu.Lock()
	d.query = c
	d.mu.Unlock()
}

func (d *FrameDriver) ClearQuery() {
	d.SetQuery(NoQuery)
}

func (d *FrameDriver) Query() Coord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.query
}

// RequestResize schedules a resize for the start of the next frame. Later
// requests replace earlier ones that have not been applied yet.
func (d *FrameDriver) RequestResize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	d.mu.Lock()
	d.resize = &resizeRequest{width: width, height: height}
	d.mu.Unlock()
	return nil
}

func (d *FrameDriver) takePending() (Coord, *resizeRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.resize
	d.resize = nil
	return d.query, r
}

// Tick runs one frame: pending resize, instance update, offscreen pass,
// pick, composite. Any error stops the driver.
func (d *FrameDriver) Tick(ctx context.Context) (FrameResult, error) {
	if d.state == StateStopped {
		return FrameResult{}, fmt.Errorf("%w: %w", ErrStopped, d.err)
	}
	if err := ctx.Err(); err != nil {
		return FrameResult{}, err
	}
	res, err := d.frame()
	if err != nil {
		d.state = StateStopped
		d.err = err
		logger().Error("frame failed, driver stopped", "frame", d.index, "err", err)
		return res, err
	}
	return res, nil
}

func (d *FrameDriver) frame() (FrameResult, error) {
	now := d.now()
	if d.state == StateIdle {
		d.state = StateRunning
		d.start, d.last = now, now
	}
	query, resize := d.takePending()
	if resize != nil {
		if err := d.pipeline.Resize(resize.width, resize.height); err != nil {
			return FrameResult{}, fmt.Errorf("resize: %w", err)
		}
	}

	w, h := d.pipeline.Size()
	info := FrameInfo{
		Index:   d.index,
		Elapsed: now.Sub(d.start),
		Delta:   now.Sub(d.last),
		Width:   w,
		Height:  h,
	}
	d.last = now

	d.batch.Reset()
	if err := d.source.BuildFrame(info, d.batch); err != nil {
		return FrameResult{}, fmt.Errorf("build frame %d: %w", info.Index, err)
	}
	n := d.batch.Len()
	if err := d.pipeline.SetInstances(d.batch.Bytes()); err != nil {
		return FrameResult{}, fmt.Errorf("upload frame %d: %w", info.Index, err)
	}
	target, err := d.pipeline.Render(n, query)
	if err != nil {
		return FrameResult{}, fmt.Errorf("render frame %d: %w", info.Index, err)
	}

	if target != d.target {
		logger().Debug("pick target changed", "from", d.target, "to", target)
		if d.onPick != nil {
			d.onPick(d.target, target)
		}
		d.target = target
	}
	res := FrameResult{Index: info.Index, Target: target, Instances: n}
	d.index++
	return res, nil
}

// Run ticks once per scheduler release until ctx is cancelled or the
// scheduler closes, both of which return nil, or until a frame fails.
func (d *FrameDriver) Run(ctx context.Context, sched Scheduler) error {
	logger().Info("frame loop started")
	for {
		if err := sched.Wait(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSchedulerClosed) {
				logger().Info("frame loop finished", "frames", d.index)
				return nil
			}
			return err
		}
		if _, err := d.Tick(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}
	}
}
