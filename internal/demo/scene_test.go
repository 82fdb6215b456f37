package demo_test

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/kjkrol/gokpick/internal/demo"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

var layout = demo.AtlasLayout{Columns: 4, Rows: 16, CellWidth: 8, CellHeight: 8}

func decodeAll(t *testing.T, b *gfx.InstanceBatch) []gfx.Instance {
	t.Helper()
	out := make([]gfx.Instance, b.Len())
	data := b.Bytes()
	for i := range out {
		in, err := gfx.DecodeInstance(data[i*gfx.InstanceStride:])
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		out[i] = in
	}
	return out
}

func TestNewScene_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     demo.SceneConfig
		wantErr error
	}{
		{"negative count", demo.SceneConfig{Count: -1, Layout: layout}, gfx.ErrCapacityExceeded},
		{"over capacity", demo.SceneConfig{Count: gfx.InstanceCapacity + 1, Layout: layout}, gfx.ErrCapacityExceeded},
		{"empty layout", demo.SceneConfig{Count: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := demo.NewScene(tt.cfg)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScene_DistinctIDs(t *testing.T) {
	s, err := demo.NewScene(demo.SceneConfig{Count: 50, Layout: layout, Seed: 7})
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	seen := map[gfx.EntityID]bool{}
	for _, id := range s.IDs() {
		if id == gfx.NoTarget || seen[id] {
			t.Fatalf("id %d is reserved or repeated", id)
		}
		seen[id] = true
		pos, ok := s.Position(id)
		if !ok || pos[0] < 0 || pos[0] > 1 || pos[1] < 0 || pos[1] > 1 {
			t.Errorf("sprite %d at %v, want inside the unit square", id, pos)
		}
	}
	if len(seen) != 50 {
		t.Errorf("got %d ids, want 50", len(seen))
	}
}

func TestScene_BuildFrameAnimatesRows(t *testing.T) {
	s, err := demo.NewScene(demo.SceneConfig{
		Count:         1,
		Layout:        layout,
		FrameDuration: 100 * time.Millisecond,
		Scale:         2,
	})
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}

	tests := []struct {
		elapsed time.Duration
		wantRow int
	}{
		{0, 0},
		{99 * time.Millisecond, 0},
		{250 * time.Millisecond, 2},
		{1700 * time.Millisecond, 1},
	}
	batch := gfx.NewInstanceBatch()
	for _, tt := range tests {
		batch.Reset()
		if err := s.BuildFrame(gfx.FrameInfo{Elapsed: tt.elapsed}, batch); err != nil {
			t.Fatalf("BuildFrame: %v", err)
		}
		got := decodeAll(t, batch)
		if len(got) != 1 {
			t.Fatalf("got %d instances, want 1", len(got))
		}
		in := got[0]
		wantV := float32(tt.wantRow) / 16
		if !mgl32.FloatEqual(in.TexTransform[1], wantV) || !mgl32.FloatEqual(in.TexScale[1], 1.0/16) {
			t.Errorf("at %s tex = %v/%v, want row %d", tt.elapsed, in.TexTransform, in.TexScale, tt.wantRow)
		}
		if in.Transform != (mgl32.Vec2{0, 0}) || in.Scale != (mgl32.Vec2{2, 2}) {
			t.Errorf("transform %v scale %v, want centered at scale 2", in.Transform, in.Scale)
		}
	}
}

func TestScene_IDsStartAtOne(t *testing.T) {
	s, err := demo.NewScene(demo.SceneConfig{Count: 3, Layout: layout})
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	ids := s.IDs()
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("IDs() = %v, want [1 2 3]", ids)
	}
}

func TestScene_AddAndRemove(t *testing.T) {
	s, err := demo.NewScene(demo.SceneConfig{Count: 3, Layout: layout})
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	s.Remove(2)
	if _, ok := s.Position(2); ok || s.Len() != 2 {
		t.Fatalf("sprite 2 still present, Len() = %d", s.Len())
	}

	id, err := s.Add(1, mgl32.Vec2{0.25, 0.75})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id != 2 {
		t.Errorf("Add reused id %d, want 2", id)
	}
	if pos, ok := s.Position(id); !ok || pos != (mgl32.Vec2{0.25, 0.75}) {
		t.Errorf("Position(%d) = %v, %v", id, pos, ok)
	}

	batch := gfx.NewInstanceBatch()
	if err := s.BuildFrame(gfx.FrameInfo{}, batch); err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	got := decodeAll(t, batch)
	if len(got) != 3 || got[1].ID != 2 || got[1].TexTransform[0] != 0.25 {
		t.Errorf("instances after re-adding: %+v", got)
	}

	full, err := demo.NewScene(demo.SceneConfig{Count: gfx.InstanceCapacity, Layout: layout})
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	if _, err := full.Add(0, mgl32.Vec2{}); !errors.Is(err, gfx.ErrCapacityExceeded) {
		t.Errorf("Add on a full scene: err = %v", err)
	}
}

func TestScene_HoverBrightensTarget(t *testing.T) {
	s, err := demo.NewScene(demo.SceneConfig{Count: 2, Layout: layout})
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	s.Hover(gfx.NoTarget, 2)
	if s.Hovered() != 2 {
		t.Fatalf("Hovered() = %d, want 2", s.Hovered())
	}

	batch := gfx.NewInstanceBatch()
	if err := s.BuildFrame(gfx.FrameInfo{}, batch); err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	for _, in := range decodeAll(t, batch) {
		bright := in.Color.R == 255
		if bright != (in.ID == 2) {
			t.Errorf("sprite %d tint %v", in.ID, in.Color)
		}
	}
}

func TestScene_SpritesStayInside(t *testing.T) {
	s, err := demo.NewScene(demo.SceneConfig{Count: 20, Layout: layout, Speed: 3, Seed: 1})
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	batch := gfx.NewInstanceBatch()
	for i := 0; i < 200; i++ {
		batch.Reset()
		if err := s.BuildFrame(gfx.FrameInfo{Delta: 16 * time.Millisecond}, batch); err != nil {
			t.Fatalf("BuildFrame: %v", err)
		}
	}
	for _, in := range decodeAll(t, batch) {
		if in.Transform[0] < -1 || in.Transform[0] > 1 || in.Transform[1] < -1 || in.Transform[1] > 1 {
			t.Errorf("sprite %d left clip space: %v", in.ID, in.Transform)
		}
	}
}

func TestStepper(t *testing.T) {
	var steps int
	st := demo.NewStepper(10*time.Millisecond, func(time.Duration) { steps++ })

	tests := []struct {
		delta time.Duration
		want  int
	}{
		{5 * time.Millisecond, 0},
		{5 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{-time.Second, 0},
		{time.Hour, 25},
	}
	for _, tt := range tests {
		if got := st.Advance(tt.delta); got != tt.want {
			t.Errorf("Advance(%s) = %d, want %d", tt.delta, got, tt.want)
		}
	}
	if steps != 28 {
		t.Errorf("update ran %d times, want 28", steps)
	}
	if a := st.Alpha(); a < 0.49 || a > 0.51 {
		t.Errorf("Alpha() = %v, want 0.5", a)
	}
}

func TestGenerateAtlas(t *testing.T) {
	l := demo.AtlasLayout{Columns: 3, Rows: 4, CellWidth: 16, CellHeight: 12}
	atlas := demo.GenerateAtlas(l)
	if b := atlas.Bounds(); b.Dx() != 48 || b.Dy() != 48 {
		t.Fatalf("atlas is %dx%d, want 48x48", b.Dx(), b.Dy())
	}
	var opaque int
	for i := 3; i < len(atlas.Pix); i += 4 {
		switch atlas.Pix[i] {
		case 255:
			opaque++
		case 0:
			if atlas.Pix[i-3]|atlas.Pix[i-2]|atlas.Pix[i-1] != 0 {
				t.Fatalf("transparent pixel %d keeps color", i/4)
			}
		default:
			t.Fatalf("pixel %d has partial alpha %d", i/4, atlas.Pix[i])
		}
	}
	if opaque == 0 || opaque == len(atlas.Pix)/4 {
		t.Errorf("%d of %d pixels opaque, want a shape", opaque, len(atlas.Pix)/4)
	}
	// Cell centers are inside the gear.
	if a := atlas.NRGBAAt(8, 6).A; a != 255 {
		t.Errorf("cell center alpha %d, want 255", a)
	}
}

func TestAtlasLayout_Cell(t *testing.T) {
	u, v, du, dv := layout.Cell(2, 4)
	if u != 0.5 || v != 0.25 || du != 0.25 || dv != 1.0/16 {
		t.Errorf("Cell(2, 4) = %v %v %v %v", u, v, du, dv)
	}
}
