package softgpu_test

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/kjkrol/gokpick/pkg/gfx"
	"github.com/kjkrol/gokpick/pkg/softgpu"
)

func compileStage(t *testing.T, dev *softgpu.Device, stage gfx.ShaderStage, source string) (bool, string) {
	t.Helper()
	s, err := dev.CreateShader(stage, source)
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	defer dev.DeleteShader(s)
	return dev.CompileShader(s)
}

func TestCompileShader(t *testing.T) {
	sprite := func(stage gfx.ShaderStage) string {
		return gfx.StageSource("#version 300 es\n", stage, gfx.PassSprite, gfx.ShaderSource)
	}
	tests := []struct {
		name    string
		stage   gfx.ShaderStage
		source  string
		ok      bool
		wantLog string
	}{
		{"sprite vertex", gfx.StageVertex, sprite(gfx.StageVertex), true, ""},
		{"sprite fragment", gfx.StageFragment, sprite(gfx.StageFragment), true, ""},
		{"no pass", gfx.StageVertex, "void main() {}\n", false, "no PASS_"},
		{"unknown pass", gfx.StageVertex, "#define PASS_BLUR\nvoid main() {}\n", false, "PASS_BLUR"},
		{"two passes", gfx.StageVertex, "#define PASS_SPRITE\n#define PASS_SCREEN\nvoid main() {}\n", false, "several passes"},
		{"missing main", gfx.StageVertex, "#define PASS_SCREEN\nin vec2 aPosition;\n", false, "entry point"},
		{"unbalanced braces", gfx.StageVertex, "#define PASS_SCREEN\nvoid main() {\n", false, "missing '}'"},
		{"stray else", gfx.StageVertex, "#define PASS_SCREEN\n#else\nvoid main() {}\n", false, "0:2"},
		{"unterminated ifdef", gfx.StageVertex, "#define PASS_SCREEN\n#ifdef X\nvoid main() {}\n", false, "unterminated"},
		{"unsupported input", gfx.StageVertex, "#define PASS_SCREEN\nin mat4 aPosition;\nvoid main() {}\n", false, "mat4"},
		{"inactive branch ignored", gfx.StageVertex, "#define PASS_SCREEN\n#ifdef NOPE\n#error x\n#endif\nvoid main() {}\n", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := softgpu.New()
			ok, log := compileStage(t, dev, tt.stage, tt.source)
			if ok != tt.ok {
				t.Fatalf("compiled = %v, want %v (log %q)", ok, tt.ok, log)
			}
			if !strings.Contains(log, tt.wantLog) {
				t.Errorf("log %q does not contain %q", log, tt.wantLog)
			}
		})
	}
}

func TestProgramInputs_FollowDeclarationOrder(t *testing.T) {
	dev := softgpu.New()
	prog, err := gfx.BuildPass(dev, gfx.PassSprite, gfx.ShaderSource)
	if err != nil {
		t.Fatalf("BuildPass: %v", err)
	}
	inputs, err := dev.ProgramInputs(prog)
	if err != nil {
		t.Fatalf("ProgramInputs: %v", err)
	}
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
		if in.Location != i {
			t.Errorf("%s at location %d, want %d", in.Name, in.Location, i)
		}
	}
	want := "aPosition aTexCoord aTransform aScale aTexTrans aTexScale aColor aId"
	if got := strings.Join(names, " "); got != want {
		t.Errorf("inputs = %s, want %s", got, want)
	}
	if inputs[len(inputs)-1].Type != gfx.InputUVec4 {
		t.Errorf("aId type = %v, want uvec4", inputs[len(inputs)-1].Type)
	}
	if err := dev.SetUniformFloat(prog, "uMissing", 1); err == nil {
		t.Errorf("setting an unknown uniform succeeded")
	}
}

func TestLimits(t *testing.T) {
	dev := softgpu.New(softgpu.WithMaxTextureSize(64))
	_, err := dev.CreateTexture(gfx.TextureDesc{Width: 65, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm})
	if !errors.Is(err, gfx.ErrAllocation) {
		t.Errorf("oversized texture error = %v, want ErrAllocation", err)
	}
	_, err = dev.CreateRenderbuffer(gputypes.TextureFormatDepth16Unorm, 64, 128)
	if !errors.Is(err, gfx.ErrAllocation) {
		t.Errorf("oversized renderbuffer error = %v, want ErrAllocation", err)
	}
	buf, err := dev.CreateBuffer(8, gfx.UsageDynamic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := dev.WriteBuffer(buf, 4, make([]byte, 8)); err == nil {
		t.Errorf("write past the buffer end succeeded")
	}
}

// TestFillRule draws a sprite whose edges run through pixel centers and
// checks that it covers exactly its area in pixels.
func TestFillRule(t *testing.T) {
	tests := []struct {
		name  string
		shift float32
	}{
		{"edges between pixels", 0},
		{"edges on pixel centers", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := softgpu.New()
			p, err := gfx.NewPipeline(dev, 64, 64, gfx.WithGeometry(gfx.SpriteQuad(20, 20, 10, 10, 1, 1)))
			if err != nil {
				t.Fatalf("NewPipeline: %v", err)
			}
			defer p.Close()
			atlas := image.NewNRGBA(image.Rect(0, 0, 1, 1))
			atlas.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			if err := p.SetAtlas(atlas); err != nil {
				t.Fatalf("SetAtlas: %v", err)
			}
			batch := gfx.NewInstanceBatch()
			shift := tt.shift * 2 / 64
			batch.Append(gfx.Instance{
				Transform: mgl32.Vec2{shift, shift},
				Scale:     mgl32.Vec2{1, 1},
				TexScale:  mgl32.Vec2{1, 1},
				Color:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
				ID:        1,
			})
			if err := p.SetInstances(batch.Bytes()); err != nil {
				t.Fatalf("SetInstances: %v", err)
			}
			if _, err := p.Render(1, gfx.NoQuery); err != nil {
				t.Fatalf("Render: %v", err)
			}
			img, err := p.ReadIdentity()
			if err != nil {
				t.Fatalf("ReadIdentity: %v", err)
			}
			covered := 0
			for i := 0; i < len(img.Pix); i += 4 {
				if img.Pix[i] == 1 {
					covered++
				}
			}
			if covered != 400 {
				t.Errorf("sprite covers %d pixels, want 400", covered)
			}
		})
	}
}

func TestScreenFollowsPresentSize(t *testing.T) {
	dev := softgpu.New(softgpu.WithScreenSize(10, 10))
	p, err := gfx.NewPipeline(dev, 40, 30, gfx.WithClearColor([4]float32{1, 0, 0, 1}))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()
	if err := p.SetInstances(nil); err != nil {
		t.Fatalf("SetInstances: %v", err)
	}
	if _, err := p.Render(0, gfx.NoQuery); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b := dev.Screen().Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("screen is %v, want 40x30", b)
	}
}

func TestClose(t *testing.T) {
	dev := softgpu.New()
	if _, err := gfx.NewPipeline(dev, 16, 16); err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := dev.Objects(); n != 0 {
		t.Errorf("%d objects after Close", n)
	}
	if _, err := dev.CreateBuffer(4, gfx.UsageStatic); !errors.Is(err, gfx.ErrNoContext) {
		t.Errorf("CreateBuffer after Close error = %v, want ErrNoContext", err)
	}
}
