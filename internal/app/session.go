package app

import (
	"fmt"
	"time"

	"github.com/kjkrol/gokpick/internal/demo"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

// Session is one configured scene running on one device.
type Session struct {
	Config   Config
	Scene    *demo.Scene
	Pipeline *gfx.Pipeline
	Driver   *gfx.FrameDriver
	Viewport *gfx.Viewport
}

type SessionOption func(*sessionOptions)

type sessionOptions struct {
	client [2]float64
	driver []gfx.DriverOption
	onPick func(prev, next gfx.EntityID)
}

// WithClientSize sets the size pointer positions are reported in when it
// differs from the drawable size.
func WithClientSize(w, h float64) SessionOption {
	return func(o *sessionOptions) { o.client = [2]float64{w, h} }
}

func WithDriverOptions(opts ...gfx.DriverOption) SessionOption {
	return func(o *sessionOptions) { o.driver = append(o.driver, opts...) }
}

// OnPick runs fn after the scene has seen a target change.
func OnPick(fn func(prev, next gfx.EntityID)) SessionOption {
	return func(o *sessionOptions) { o.onPick = fn }
}

// NewSession builds the scene, the pipeline sized width x height and the
// driver tying them together. The atlas is uploaded before it returns.
func NewSession(c Config, dev gfx.Device, width, height int, opts ...SessionOption) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	scene, err := demo.NewScene(demo.SceneConfig{
		Count:         c.Sprites.Count,
		Layout:        c.AtlasLayout(),
		FrameDuration: c.Sprites.FrameDuration,
		Scale:         c.Sprites.Scale,
		Speed:         c.Sprites.Speed,
		Seed:          c.Sprites.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	atlas, err := LoadAtlas(c)
	if err != nil {
		return nil, err
	}

	p, err := gfx.NewPipeline(dev, width, height,
		gfx.WithClearColor(c.ClearColor),
		gfx.WithGeometry(scene.Geometry()),
	)
	if err != nil {
		return nil, err
	}
	if err := p.SetAtlas(atlas); err != nil {
		p.Close()
		return nil, fmt.Errorf("upload atlas: %w", err)
	}

	pick := scene.Hover
	if o.onPick != nil {
		pick = func(prev, next gfx.EntityID) {
			scene.Hover(prev, next)
			o.onPick(prev, next)
		}
	}
	driverOpts := append([]gfx.DriverOption{gfx.WithPickHandler(pick)}, o.driver...)

	return &Session{
		Config:   c,
		Scene:    scene,
		Pipeline: p,
		Driver:   gfx.NewFrameDriver(p, scene, driverOpts...),
		Viewport: gfx.NewViewport(width, height, o.client[0], o.client[1]),
	}, nil
}

// FramePeriod is the wait between frames at the configured refresh rate.
func (s *Session) FramePeriod() time.Duration {
	return time.Second / time.Duration(max(s.Config.RefreshRate, 1))
}

func (s *Session) Close() {
	s.Pipeline.Close()
}
