package softgpu

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

const maxVaryings = 12

type kernelInput struct {
	name string
	typ  gfx.InputType
}

type uniformSet map[string][]float32

func (u uniformSet) vec2(name string) mgl32.Vec2 {
	v := u[name]
	var out mgl32.Vec2
	copy(out[:], v)
	return out
}

// sampler reads the texture bound to a unit.
type sampler func(unit int, u, v float32) mgl32.Vec4

// kernel is the Go counterpart of one GLSL pass. attrs follow the order of
// inputs(); flat varyings are taken from the first vertex of a triangle.
type kernel interface {
	inputs() []kernelInput
	uniforms() []string
	varyings() int
	flat(i int) bool
	outputs() int
	vertex(attrs []mgl32.Vec4, u uniformSet, out []float32) mgl32.Vec4
	fragment(in []float32, tex sampler, out []mgl32.Vec4)
}

var kernels = map[string]kernel{
	"PASS_SPRITE": spriteKernel{},
	"PASS_SCREEN": screenKernel{},
}

// spriteKernel mirrors the sprite pass: the quad corner is scaled to clip
// space by the resolution, then by the instance scale, and moved by the
// instance transform. The identity output is the raw id bytes weighted by
// the atlas alpha; the diffuse output is the atlas texel times the tint.
type spriteKernel struct{}

const (
	spritePosition = iota
	spriteTexCoord
	spriteTransform
	spriteScale
	spriteTexTrans
	spriteTexScale
	spriteColor
	spriteID
)

func (spriteKernel) inputs() []kernelInput {
	return []kernelInput{
		{gfx.AttrPosition, gfx.InputVec2},
		{gfx.AttrTexCoord, gfx.InputVec2},
		{gfx.AttrTransform, gfx.InputVec2},
		{gfx.AttrScale, gfx.InputVec2},
		{gfx.AttrTexTransform, gfx.InputVec2},
		{gfx.AttrTexScale, gfx.InputVec2},
		{gfx.AttrColor, gfx.InputVec4},
		{gfx.AttrID, gfx.InputUVec4},
	}
}

func (spriteKernel) uniforms() []string { return []string{"uResolution", "uAtlas"} }
func (spriteKernel) varyings() int      { return 10 }
func (spriteKernel) flat(i int) bool    { return i >= 6 }
func (spriteKernel) outputs() int       { return 2 }

func (spriteKernel) vertex(a []mgl32.Vec4, u uniformSet, out []float32) mgl32.Vec4 {
	res := u.vec2("uResolution")
	pos, scale, move := a[spritePosition], a[spriteScale], a[spriteTransform]
	clipX := pos[0]*2/res[0]*scale[0] + move[0]
	clipY := pos[1]*2/res[1]*scale[1] + move[1]

	tc, ts, tt := a[spriteTexCoord], a[spriteTexScale], a[spriteTexTrans]
	out[0] = tc[0]*ts[0] + tt[0]
	out[1] = tc[1]*ts[1] + tt[1]
	copy(out[2:6], a[spriteColor][:])
	copy(out[6:10], a[spriteID][:])
	return mgl32.Vec4{clipX, clipY, 0.5, 1}
}

func (spriteKernel) fragment(in []float32, tex sampler, out []mgl32.Vec4) {
	texColor := tex(0, in[0], in[1])
	color := mgl32.Vec4{in[2], in[3], in[4], in[5]}
	id := mgl32.Vec4{in[6], in[7], in[8], in[9]}
	out[0] = id.Mul(1.0 / 255).Mul(texColor[3])
	out[1] = mgl32.Vec4{
		texColor[0] * color[0],
		texColor[1] * color[1],
		texColor[2] * color[2],
		texColor[3] * color[3],
	}
}

// screenKernel mirrors the screen pass: a straight texture lookup.
type screenKernel struct{}

func (screenKernel) inputs() []kernelInput {
	return []kernelInput{
		{gfx.AttrPosition, gfx.InputVec2},
		{gfx.AttrTexCoord, gfx.InputVec2},
	}
}

func (screenKernel) uniforms() []string { return []string{"uTexture"} }
func (screenKernel) varyings() int      { return 2 }
func (screenKernel) flat(int) bool      { return false }
func (screenKernel) outputs() int       { return 1 }

func (screenKernel) vertex(a []mgl32.Vec4, _ uniformSet, out []float32) mgl32.Vec4 {
	out[0] = a[1][0]
	out[1] = a[1][1]
	return mgl32.Vec4{a[0][0], a[0][1], 0, 1}
}

func (screenKernel) fragment(in []float32, tex sampler, out []mgl32.Vec4) {
	out[0] = tex(0, in[0], in[1])
}
