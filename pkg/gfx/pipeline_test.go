package gfx_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/kjkrol/gokpick/pkg/gfx"
	"github.com/kjkrol/gokpick/pkg/softgpu"
)

// opaqueAtlas is a single white texel, so every covered pixel is opaque.
func opaqueAtlas() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func newTestPipeline(t *testing.T, dev *softgpu.Device, width, height int, opts ...gfx.PipelineOption) *gfx.Pipeline {
	t.Helper()
	opts = append([]gfx.PipelineOption{gfx.WithGeometry(gfx.SpriteQuad(20, 20, 10, 10, 1, 1))}, opts...)
	p, err := gfx.NewPipeline(dev, width, height, opts...)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	t.Cleanup(p.Close)
	if err := p.SetAtlas(opaqueAtlas()); err != nil {
		t.Fatalf("SetAtlas: %v", err)
	}
	return p
}

func centered(id gfx.EntityID) gfx.Instance {
	return gfx.Instance{
		Scale:    mgl32.Vec2{1, 1},
		TexScale: mgl32.Vec2{1, 1},
		Color:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
		ID:       id,
	}
}

func upload(t *testing.T, p *gfx.Pipeline, instances ...gfx.Instance) {
	t.Helper()
	batch := gfx.NewInstanceBatch()
	for _, in := range instances {
		if err := batch.Append(in); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := p.SetInstances(batch.Bytes()); err != nil {
		t.Fatalf("SetInstances: %v", err)
	}
}

func TestPipeline_PickRoundTrip(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 64, 48)
	upload(t, p, centered(1))

	tests := []struct {
		name  string
		query gfx.Coord
		want  gfx.EntityID
	}{
		{"covered pixel", gfx.Coord{X: 32, Y: 24}, 1},
		{"uncovered pixel", gfx.Coord{X: 0, Y: 0}, gfx.NoTarget},
		{"no query", gfx.NoQuery, gfx.NoTarget},
		{"outside the surface", gfx.Coord{X: 64, Y: 10}, gfx.NoTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Render(1, tt.query)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render(%v) picked %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestPipeline_IdentityHoldsRawIDBytes(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 64, 48)
	const id = gfx.EntityID(0x00C0FFEE)
	upload(t, p, centered(id))
	if _, err := p.Render(1, gfx.NoQuery); err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := p.ReadIdentity()
	if err != nil {
		t.Fatalf("ReadIdentity: %v", err)
	}
	// Top-down image: framebuffer row 24 is image row 48-1-24.
	c := img.NRGBAAt(32, 23)
	if got := gfx.DecodeEntityID([4]byte{c.R, c.G, c.B, c.A}); got != id {
		t.Errorf("identity pixel decodes to %#x, want %#x", uint32(got), uint32(id))
	}
}

func TestPipeline_OneInstancedDrawPerFrame(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 64, 64)
	instances := make([]gfx.Instance, 10)
	for i := range instances {
		instances[i] = centered(gfx.EntityID(i + 1))
	}
	upload(t, p, instances...)

	dev.ResetStats()
	if _, err := p.Render(len(instances), gfx.Coord{X: 32, Y: 32}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	st := dev.Stats()
	if st.InstancedDraws != 1 {
		t.Errorf("instanced draws = %d, want 1", st.InstancedDraws)
	}
	if st.LastInstances != len(instances) {
		t.Errorf("instances drawn = %d, want %d", st.LastInstances, len(instances))
	}
	if st.Draws != 2 {
		t.Errorf("draws = %d, want 2 (sprites and composite)", st.Draws)
	}
}

func TestPipeline_FirstInstanceWinsOnOverlap(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 64, 64)
	upload(t, p, centered(3), centered(9))
	got, err := p.Render(2, gfx.Coord{X: 32, Y: 32})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != 3 {
		t.Errorf("picked %d, want 3", got)
	}
}

func TestPipeline_SetInstancesRejectsBadInput(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 32, 32)
	upload(t, p, centered(1), centered(2))

	tests := []struct {
		name    string
		records []byte
		wantErr error
	}{
		{"partial record", make([]byte, gfx.InstanceStride+1), gfx.ErrMalformedBuffer},
		{"over capacity", make([]byte, (gfx.InstanceCapacity+1)*gfx.InstanceStride), gfx.ErrCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.SetInstances(tt.records)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetInstances error = %v, want %v", err, tt.wantErr)
			}
			if got := p.Sprites().Uploaded(); got != 2 {
				t.Errorf("uploaded = %d after rejected upload, want 2", got)
			}
		})
	}
}

func TestSpriteRenderer_DrawCountChecks(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 32, 32)
	upload(t, p, centered(1))
	target := p.Targets().BindForOffscreenDraw()

	dev.ResetStats()
	if err := p.Sprites().Draw(target, gfx.InstanceCapacity+1); !errors.Is(err, gfx.ErrCapacityExceeded) {
		t.Errorf("Draw(513) error = %v, want ErrCapacityExceeded", err)
	}
	if err := p.Sprites().Draw(target, 2); !errors.Is(err, gfx.ErrInstanceCount) {
		t.Errorf("Draw(2) with 1 uploaded error = %v, want ErrInstanceCount", err)
	}
	if st := dev.Stats(); st.Draws != 0 || st.Clears != 0 {
		t.Errorf("rejected draws touched the device: %+v", st)
	}
}

func TestPipeline_ResizeKeepsPick(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 800, 600)
	upload(t, p, centered(1))

	got, err := p.Render(1, gfx.Coord{X: 400, Y: 300})
	if err != nil || got != 1 {
		t.Fatalf("before resize: picked %d, err %v", got, err)
	}

	if err := p.Resize(1920, 1080); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if w, h := p.Size(); w != 1920 || h != 1080 {
		t.Fatalf("size = %dx%d, want 1920x1080", w, h)
	}
	got, err = p.Render(1, gfx.Coord{X: 960, Y: 540})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != 1 {
		t.Errorf("after resize: picked %d, want 1", got)
	}
	for name, read := range map[string]func() (*image.NRGBA, error){
		"identity": p.ReadIdentity,
		"diffuse":  p.ReadDiffuse,
	} {
		img, err := read()
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != 1920 || b.Dy() != 1080 {
			t.Errorf("%s attachment is %dx%d, want 1920x1080", name, b.Dx(), b.Dy())
		}
	}
}

func TestPipeline_SameSizeResizeIsIdentical(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 96, 64)
	upload(t, p, centered(5))

	if _, err := p.Render(1, gfx.NoQuery); err != nil {
		t.Fatalf("Render: %v", err)
	}
	before, _ := p.ReadDiffuse()
	fb := p.Targets().Framebuffer()

	if err := p.Resize(96, 64); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if p.Targets().Framebuffer() != fb {
		t.Errorf("same-size resize replaced the framebuffer")
	}
	if _, err := p.Render(1, gfx.NoQuery); err != nil {
		t.Fatalf("Render: %v", err)
	}
	after, _ := p.ReadDiffuse()
	if !bytes.Equal(before.Pix, after.Pix) {
		t.Errorf("diffuse output changed across a same-size resize")
	}
}

func TestPipeline_FailedResizeKeepsOldSize(t *testing.T) {
	dev := softgpu.New(softgpu.WithMaxTextureSize(128))
	p := newTestPipeline(t, dev, 64, 64)
	upload(t, p, centered(1))

	err := p.Resize(256, 256)
	if !errors.Is(err, gfx.ErrAllocation) {
		t.Fatalf("Resize error = %v, want ErrAllocation", err)
	}
	if w, h := p.Size(); w != 64 || h != 64 {
		t.Errorf("size = %dx%d after failed resize, want 64x64", w, h)
	}
	got, err := p.Render(1, gfx.Coord{X: 32, Y: 32})
	if err != nil || got != 1 {
		t.Errorf("render after failed resize: picked %d, err %v", got, err)
	}
}

func TestPipeline_CompositeMatchesDiffuse(t *testing.T) {
	dev := softgpu.New()
	p := newTestPipeline(t, dev, 50, 40, gfx.WithClearColor([4]float32{0.2, 0.4, 0.6, 1}))
	in := centered(2)
	in.Color = color.RGBA{R: 255, G: 128, B: 0, A: 255}
	in.Transform = mgl32.Vec2{0.25, -0.1}
	upload(t, p, in)

	if _, err := p.Render(1, gfx.NoQuery); err != nil {
		t.Fatalf("Render: %v", err)
	}
	diffuse, err := p.ReadDiffuse()
	if err != nil {
		t.Fatalf("ReadDiffuse: %v", err)
	}
	screen := dev.Screen()
	if screen.Bounds() != diffuse.Bounds() {
		t.Fatalf("screen %v, diffuse %v", screen.Bounds(), diffuse.Bounds())
	}
	if !bytes.Equal(screen.Pix, diffuse.Pix) {
		t.Errorf("visible surface differs from the diffuse attachment")
	}
}

func TestPipeline_TransparentUntilAtlasSet(t *testing.T) {
	dev := softgpu.New()
	p, err := gfx.NewPipeline(dev, 32, 32, gfx.WithGeometry(gfx.SpriteQuad(20, 20, 10, 10, 1, 1)))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	upload(t, p, centered(4))

	got, err := p.Render(1, gfx.Coord{X: 16, Y: 16})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != gfx.NoTarget {
		t.Errorf("picked %d through the placeholder atlas, want NoTarget", got)
	}
}

func TestNewPipeline_ShaderErrors(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		wantStage string
		wantLog   string
	}{
		{
			name:      "unbalanced braces",
			source:    strings.Replace(gfx.ShaderSource, "void main() {", "void main() {{", 1),
			wantStage: "compile",
			wantLog:   "vertex log",
		},
		{
			name:      "missing id input",
			source:    strings.Replace(gfx.ShaderSource, "in uvec4 aId;", "", 1),
			wantStage: "link",
			wantLog:   "aId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := softgpu.New()
			_, err := gfx.NewPipeline(dev, 32, 32, gfx.WithShaderSource(tt.source))
			var se *gfx.ShaderError
			if !errors.As(err, &se) {
				t.Fatalf("NewPipeline error = %v, want *ShaderError", err)
			}
			if se.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", se.Stage, tt.wantStage)
			}
			if !strings.Contains(err.Error(), tt.wantLog) {
				t.Errorf("error %q does not mention %q", err, tt.wantLog)
			}
			if n := dev.Objects(); n != 0 {
				t.Errorf("%d device objects leaked", n)
			}
		})
	}
}

func TestNewPipeline_NilDevice(t *testing.T) {
	if _, err := gfx.NewPipeline(nil, 10, 10); !errors.Is(err, gfx.ErrNoContext) {
		t.Errorf("error = %v, want ErrNoContext", err)
	}
}

func TestPipeline_CloseReleasesEverything(t *testing.T) {
	dev := softgpu.New()
	p, err := gfx.NewPipeline(dev, 16, 16)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if err := p.Resize(32, 32); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	p.Close()
	if n := dev.Objects(); n != 0 {
		t.Errorf("%d device objects left after Close", n)
	}
}
