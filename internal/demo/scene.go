package demo

import (
	"fmt"
	"image/color"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/kjkrol/gokpick/pkg/ecs"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

var (
	baseTint    = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	hoveredTint = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

type SceneConfig struct {
	Count  int
	Layout AtlasLayout
	// FrameDuration is how long each animation row stays on screen.
	FrameDuration time.Duration
	Scale         float32
	// Speed is in surface widths per second; zero keeps sprites still.
	Speed float64
	Seed  uint64
	Step  time.Duration
}

// Motion is a sprite's position and velocity in normalized surface units,
// origin bottom-left.
type Motion struct {
	Pos mgl32.Vec2
	Vel mgl32.Vec2
}

// Animation selects the atlas column a sprite plays and where in the
// column it starts.
type Animation struct {
	Column int
	Phase  int
}

// motionSystem moves sprites and bounces them off the surface edges.
type motionSystem struct {
	view   ecs.View
	motion map[ecs.Entity]*Motion
}

func (m *motionSystem) Init(api ecs.SystemAPI) error {
	var err error
	m.view, err = api.NewView(Motion{})
	m.motion = ecs.Map[Motion](api)
	return err
}

func (m *motionSystem) Update(api ecs.SystemAPI, step time.Duration) {
	dt := float32(step.Seconds())
	api.Each(m.view, func(e ecs.Entity) {
		mo := m.motion[e]
		mo.Pos = mo.Pos.Add(mo.Vel.Mul(dt))
		for axis := 0; axis < 2; axis++ {
			if mo.Pos[axis] < 0 {
				mo.Pos[axis] = -mo.Pos[axis]
				mo.Vel[axis] = -mo.Vel[axis]
			} else if mo.Pos[axis] > 1 {
				mo.Pos[axis] = 2 - mo.Pos[axis]
				mo.Vel[axis] = -mo.Vel[axis]
			}
		}
	})
}

// Scene is a gfx.FrameSource. Every sprite is an entity; the entity
// number is the id written to the identity surface. Positions are kept in
// normalized surface units, so a resize keeps every sprite over the same
// relative spot.
type Scene struct {
	cfg       SceneConfig
	world     *ecs.Engine
	drawn     ecs.View
	motion    map[ecs.Entity]*Motion
	animation map[ecs.Entity]*Animation
	stepper   *Stepper
	hovered   atomic.Uint32
}

var _ gfx.FrameSource = (*Scene)(nil)

func NewScene(cfg SceneConfig) (*Scene, error) {
	if cfg.Count < 0 || cfg.Count > gfx.InstanceCapacity {
		return nil, fmt.Errorf("%w: %d sprites", gfx.ErrCapacityExceeded, cfg.Count)
	}
	if cfg.Layout.Columns <= 0 || cfg.Layout.Rows <= 0 {
		return nil, fmt.Errorf("atlas layout %dx%d has no cells", cfg.Layout.Columns, cfg.Layout.Rows)
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 100 * time.Millisecond
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}

	world := ecs.NewEngine()
	ecs.RegisterComponent[Motion](world)
	ecs.RegisterComponent[Animation](world)
	if err := world.RegisterSystems(&motionSystem{}); err != nil {
		return nil, err
	}
	drawn, err := world.NewView(Motion{}, Animation{})
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	for i := 0; i < cfg.Count; i++ {
		e := world.CreateEntity()
		mo := Motion{Pos: mgl32.Vec2{0.1 + 0.8*rng.Float32(), 0.1 + 0.8*rng.Float32()}}
		anim := Animation{Column: i % cfg.Layout.Columns, Phase: rng.IntN(cfg.Layout.Rows)}
		if cfg.Count == 1 {
			mo.Pos = mgl32.Vec2{0.5, 0.5}
			anim.Phase = 0
		}
		if cfg.Speed > 0 {
			angle := rng.Float64() * 2 * math.Pi
			v := mgl32.Vec2{float32(cfg.Speed), 0}
			mo.Vel = mgl32.Rotate2D(float32(angle)).Mul2x1(v)
		}
		ecs.Assign(world, e, mo)
		ecs.Assign(world, e, anim)
	}

	s := &Scene{
		cfg:       cfg,
		world:     world,
		drawn:     drawn,
		motion:    ecs.Map[Motion](world),
		animation: ecs.Map[Animation](world),
	}
	s.stepper = NewStepper(cfg.Step, world.UpdateSystems)
	return s, nil
}

func (s *Scene) Len() int { return s.world.Len() }

// IDs lists the sprites in drawing order.
func (s *Scene) IDs() []gfx.EntityID {
	var ids []gfx.EntityID
	s.world.Each(s.drawn, func(e ecs.Entity) {
		ids = append(ids, gfx.EntityID(e))
	})
	return ids
}

// Position returns the normalized center of a sprite, origin bottom-left.
func (s *Scene) Position(id gfx.EntityID) (mgl32.Vec2, bool) {
	mo, ok := s.motion[ecs.Entity(id)]
	if !ok {
		return mgl32.Vec2{}, false
	}
	return mo.Pos, true
}

// Hover matches the frame driver's pick handler; the hovered sprite is
// drawn at full brightness.
func (s *Scene) Hover(_, next gfx.EntityID) {
	s.hovered.Store(uint32(next))
}

func (s *Scene) Hovered() gfx.EntityID {
	return gfx.EntityID(s.hovered.Load())
}

func (s *Scene) BuildFrame(info gfx.FrameInfo, batch *gfx.InstanceBatch) error {
	s.stepper.Advance(info.Delta)
	tick := int(info.Elapsed / s.cfg.FrameDuration)
	hovered := s.Hovered()
	var err error
	s.world.Each(s.drawn, func(e ecs.Entity) {
		if err != nil {
			return
		}
		mo, anim := s.motion[e], s.animation[e]
		row := (tick + anim.Phase) % s.cfg.Layout.Rows
		u, v, du, dv := s.cfg.Layout.Cell(anim.Column, row)
		id := gfx.EntityID(e)
		tint := baseTint
		if id == hovered {
			tint = hoveredTint
		}
		err = batch.Append(gfx.Instance{
			Transform:    mgl32.Vec2{mo.Pos[0]*2 - 1, mo.Pos[1]*2 - 1},
			Scale:        mgl32.Vec2{s.cfg.Scale, s.cfg.Scale},
			TexTransform: mgl32.Vec2{u, v},
			TexScale:     mgl32.Vec2{du, dv},
			Color:        tint,
			ID:           id,
		})
	})
	return err
}

// Remove takes a sprite out of the scene. Its id is handed to the next
// sprite added.
func (s *Scene) Remove(id gfx.EntityID) {
	s.world.RemoveEntity(ecs.Entity(id))
}

// Add places a sprite playing column at the normalized position pos.
func (s *Scene) Add(column int, pos mgl32.Vec2) (gfx.EntityID, error) {
	if s.world.Len() >= gfx.InstanceCapacity {
		return gfx.NoTarget, gfx.ErrCapacityExceeded
	}
	e := s.world.CreateEntity()
	ecs.Assign(s.world, e, Motion{Pos: pos})
	ecs.Assign(s.world, e, Animation{Column: column % s.cfg.Layout.Columns})
	return gfx.EntityID(e), nil
}

// Geometry is the shared quad: one atlas cell centered on the instance
// position, texture coordinates spanning the unit square.
func (s *Scene) Geometry() [gfx.QuadVertexCount]gfx.QuadVertex {
	w, h := float32(s.cfg.Layout.CellWidth), float32(s.cfg.Layout.CellHeight)
	return gfx.SpriteQuad(w, h, w/2, h/2, 1, 1)
}
