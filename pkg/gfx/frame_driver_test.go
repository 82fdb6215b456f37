package gfx_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kjkrol/gokpick/pkg/gfx"
	"github.com/kjkrol/gokpick/pkg/softgpu"
)

// recorder logs the device calls a frame is made of.
type recorder struct {
	*softgpu.Device
	mu    sync.Mutex
	calls []string
}

func (r *recorder) log(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *recorder) target(fb gfx.Framebuffer) string {
	if fb == gfx.DefaultFramebuffer {
		return "screen"
	}
	return "offscreen"
}

func (r *recorder) WriteBuffer(b gfx.Buffer, offset int, data []byte) error {
	r.log("upload")
	return r.Device.WriteBuffer(b, offset, data)
}

func (r *recorder) Clear(fb gfx.Framebuffer, desc gfx.ClearDesc) {
	r.log("clear %s", r.target(fb))
	r.Device.Clear(fb, desc)
}

func (r *recorder) Draw(desc gfx.DrawDesc) error {
	r.log("draw %s", r.target(desc.Target))
	return r.Device.Draw(desc)
}

func (r *recorder) ReadPixels(fb gfx.Framebuffer, attachment, x, y, w, h int, dst []byte) error {
	r.log("pick")
	return r.Device.ReadPixels(fb, attachment, x, y, w, h, dst)
}

func singleSprite(id gfx.EntityID) gfx.FrameSource {
	return gfx.FrameSourceFunc(func(_ gfx.FrameInfo, batch *gfx.InstanceBatch) error {
		return batch.Append(centered(id))
	})
}

func TestFrameDriver_PassOrder(t *testing.T) {
	rec := &recorder{Device: softgpu.New()}
	p, err := gfx.NewPipeline(rec, 64, 64, gfx.WithGeometry(gfx.SpriteQuad(20, 20, 10, 10, 1, 1)))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	if err := p.SetAtlas(opaqueAtlas()); err != nil {
		t.Fatalf("SetAtlas: %v", err)
	}

	d := gfx.NewFrameDriver(p, singleSprite(1))
	d.SetQuery(gfx.Coord{X: 32, Y: 32})
	rec.reset()

	res, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Target != 1 || res.Instances != 1 {
		t.Errorf("result = %+v", res)
	}
	want := []string{"upload", "clear offscreen", "draw offscreen", "pick", "clear screen", "draw screen"}
	if fmt.Sprint(rec.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestFrameDriver_NoReadbackWithoutQuery(t *testing.T) {
	rec := &recorder{Device: softgpu.New()}
	p, err := gfx.NewPipeline(rec, 32, 32)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	d := gfx.NewFrameDriver(p, singleSprite(1))
	rec.reset()

	res, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Target != gfx.NoTarget {
		t.Errorf("target = %d, want NoTarget", res.Target)
	}
	for _, c := range rec.calls {
		if c == "pick" {
			t.Errorf("frame without query read pixels: %v", rec.calls)
		}
	}
}

func TestFrameDriver_StopsOnError(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 32, 32)
	errBoom := errors.New("boom")
	calls := 0
	d := gfx.NewFrameDriver(p, gfx.FrameSourceFunc(func(gfx.FrameInfo, *gfx.InstanceBatch) error {
		calls++
		return errBoom
	}))

	if _, err := d.Tick(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("first Tick error = %v, want boom", err)
	}
	if d.State() != gfx.StateStopped {
		t.Errorf("state = %v, want stopped", d.State())
	}
	_, err := d.Tick(context.Background())
	if !errors.Is(err, gfx.ErrStopped) || !errors.Is(err, errBoom) {
		t.Errorf("second Tick error = %v, want ErrStopped wrapping boom", err)
	}
	if calls != 1 {
		t.Errorf("source called %d times, want 1", calls)
	}
}

func TestFrameDriver_CapacityErrorStops(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 32, 32)
	d := gfx.NewFrameDriver(p, gfx.FrameSourceFunc(func(_ gfx.FrameInfo, batch *gfx.InstanceBatch) error {
		for i := 0; i <= gfx.InstanceCapacity; i++ {
			if err := batch.Append(centered(1)); err != nil {
				return err
			}
		}
		return nil
	}))
	dev.ResetStats()
	if _, err := d.Tick(context.Background()); !errors.Is(err, gfx.ErrCapacityExceeded) {
		t.Fatalf("Tick error = %v, want ErrCapacityExceeded", err)
	}
	if st := dev.Stats(); st.Draws != 0 {
		t.Errorf("%d draws issued for a rejected frame", st.Draws)
	}
}

func TestFrameDriver_PickHandlerAndTiming(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 64, 64)

	now := time.Unix(100, 0)
	var infos []gfx.FrameInfo
	source := gfx.FrameSourceFunc(func(info gfx.FrameInfo, batch *gfx.InstanceBatch) error {
		infos = append(infos, info)
		return batch.Append(centered(7))
	})
	var changes [][2]gfx.EntityID
	d := gfx.NewFrameDriver(p, source,
		gfx.WithClock(func() time.Time { return now }),
		gfx.WithPickHandler(func(prev, next gfx.EntityID) {
			changes = append(changes, [2]gfx.EntityID{prev, next})
		}),
	)

	ctx := context.Background()
	d.SetQuery(gfx.Coord{X: 32, Y: 32})
	for i := 0; i < 3; i++ {
		if _, err := d.Tick(ctx); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
		now = now.Add(16 * time.Millisecond)
	}
	d.ClearQuery()
	if _, err := d.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	want := [][2]gfx.EntityID{{gfx.NoTarget, 7}, {7, gfx.NoTarget}}
	if fmt.Sprint(changes) != fmt.Sprint(want) {
		t.Errorf("pick changes = %v, want %v", changes, want)
	}
	if len(infos) != 4 {
		t.Fatalf("source called %d times, want 4", len(infos))
	}
	if infos[0].Delta != 0 || infos[3].Elapsed != 48*time.Millisecond || infos[3].Index != 3 {
		t.Errorf("frame timing = %+v", infos)
	}
}

func TestFrameDriver_RequestResize(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 64, 64)
	var last gfx.FrameInfo
	d := gfx.NewFrameDriver(p, gfx.FrameSourceFunc(func(info gfx.FrameInfo, batch *gfx.InstanceBatch) error {
		last = info
		return nil
	}))

	if err := d.RequestResize(0, 10); !errors.Is(err, gfx.ErrInvalidSize) {
		t.Errorf("RequestResize(0, 10) error = %v, want ErrInvalidSize", err)
	}
	if err := d.RequestResize(100, 50); err != nil {
		t.Fatalf("RequestResize: %v", err)
	}
	if err := d.RequestResize(120, 80); err != nil {
		t.Fatalf("RequestResize: %v", err)
	}
	if w, h := p.Size(); w != 64 || h != 64 {
		t.Errorf("resize applied before the frame boundary: %dx%d", w, h)
	}
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if last.Width != 120 || last.Height != 80 {
		t.Errorf("frame saw %dx%d, want the latest request 120x80", last.Width, last.Height)
	}
}

func TestFrameDriver_RunWithManualScheduler(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 32, 32)
	var frames int
	d := gfx.NewFrameDriver(p, gfx.FrameSourceFunc(func(gfx.FrameInfo, *gfx.InstanceBatch) error {
		frames++
		return nil
	}))

	sched := gfx.NewManualScheduler()
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), sched) }()

	for i := 0; i < 3; i++ {
		if !sched.Step() {
			t.Fatalf("scheduler closed early")
		}
	}
	sched.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if frames != 3 {
		t.Errorf("ran %d frames, want 3", frames)
	}
}

func TestFrameDriver_RunReturnsFrameError(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 32, 32)
	errBoom := errors.New("boom")
	d := gfx.NewFrameDriver(p, gfx.FrameSourceFunc(func(gfx.FrameInfo, *gfx.InstanceBatch) error {
		return errBoom
	}))

	sched := gfx.NewManualScheduler()
	defer sched.Close()
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), sched) }()
	sched.Step()
	if err := <-done; !errors.Is(err, errBoom) {
		t.Errorf("Run error = %v, want boom", err)
	}
}

func TestFrameDriver_RunStopsOnCancel(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 32, 32)
	d := gfx.NewFrameDriver(p, singleSprite(1))

	ctx, cancel := context.WithCancel(context.Background())
	sched := gfx.NewTickerScheduler(time.Millisecond)
	defer sched.Stop()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, sched) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
}
