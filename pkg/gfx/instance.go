package gfx

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

const (
	InstanceStride   = 40
	InstanceCapacity = 512

	QuadVertexStride = 16
	QuadVertexCount  = 4
	QuadGeometrySize = QuadVertexStride * QuadVertexCount
)

// Byte offsets inside an instance record. InstanceLayout and Instance.Encode
// both read them, so the writer and the descriptor cannot drift apart.
const (
	offsetTransform    = 0
	offsetScale        = 8
	offsetTexTransform = 16
	offsetTexScale     = 24
	offsetColor        = 32
	offsetID           = 36
)

const (
	AttrPosition     = "aPosition"
	AttrTexCoord     = "aTexCoord"
	AttrTransform    = "aTransform"
	AttrScale        = "aScale"
	AttrTexTransform = "aTexTrans"
	AttrTexScale     = "aTexScale"
	AttrColor        = "aColor"
	AttrID           = "aId"
)

// QuadLayout describes the shared 4-corner geometry.
var QuadLayout = VertexLayout{
	Stride:   QuadVertexStride,
	StepMode: gputypes.VertexStepModeVertex,
	Attributes: []Attribute{
		{Name: AttrPosition, Format: gputypes.VertexFormatFloat32x2, Offset: 0},
		{Name: AttrTexCoord, Format: gputypes.VertexFormatFloat32x2, Offset: 8},
	},
}

// InstanceLayout describes one 40-byte instance record.
var InstanceLayout = VertexLayout{
	Stride:   InstanceStride,
	StepMode: gputypes.VertexStepModeInstance,
	Attributes: []Attribute{
		{Name: AttrTransform, Format: gputypes.VertexFormatFloat32x2, Offset: offsetTransform},
		{Name: AttrScale, Format: gputypes.VertexFormatFloat32x2, Offset: offsetScale},
		{Name: AttrTexTransform, Format: gputypes.VertexFormatFloat32x2, Offset: offsetTexTransform},
		{Name: AttrTexScale, Format: gputypes.VertexFormatFloat32x2, Offset: offsetTexScale},
		{Name: AttrColor, Format: gputypes.VertexFormatUnorm8x4, Offset: offsetColor},
		{Name: AttrID, Format: gputypes.VertexFormatUint8x4, Offset: offsetID},
	},
}

// Instance is the decoded form of one instance record. Transform is a
// clip-space translation, Scale multiplies the quad corners, TexTransform and
// TexScale select the atlas cell. Color tints the diffuse output; ID is
// written to the identity surface as raw bytes.
type Instance struct {
	Transform    mgl32.Vec2
	Scale        mgl32.Vec2
	TexTransform mgl32.Vec2
	TexScale     mgl32.Vec2
	Color        color.RGBA
	ID           EntityID
}

// Encode writes the little-endian record into dst, which must hold at least
// InstanceStride bytes.
func (in Instance) Encode(dst []byte) {
	_ = dst[InstanceStride-1]
	putVec2(dst[offsetTransform:], in.Transform)
	putVec2(dst[offsetScale:], in.Scale)
	putVec2(dst[offsetTexTransform:], in.TexTransform)
	putVec2(dst[offsetTexScale:], in.TexScale)
	dst[offsetColor+0] = in.Color.R
	dst[offsetColor+1] = in.Color.G
	dst[offsetColor+2] = in.Color.B
	dst[offsetColor+3] = in.Color.A
	id := in.ID.Bytes()
	copy(dst[offsetID:offsetID+4], id[:])
}

func DecodeInstance(src []byte) (Instance, error) {
	if len(src) < InstanceStride {
		return Instance{}, fmt.Errorf("%w: instance record has %d bytes", ErrMalformedBuffer, len(src))
	}
	return Instance{
		Transform:    getVec2(src[offsetTransform:]),
		Scale:        getVec2(src[offsetScale:]),
		TexTransform: getVec2(src[offsetTexTransform:]),
		TexScale:     getVec2(src[offsetTexScale:]),
		Color:        color.RGBA{R: src[offsetColor], G: src[offsetColor+1], B: src[offsetColor+2], A: src[offsetColor+3]},
		ID:           DecodeEntityID([4]byte{src[offsetID], src[offsetID+1], src[offsetID+2], src[offsetID+3]}),
	}, nil
}

// InstanceBatch is a reusable buffer of up to InstanceCapacity records.
type InstanceBatch struct {
	buf [InstanceCapacity * InstanceStride]byte
	n   int
}

func NewInstanceBatch() *InstanceBatch {
	return &InstanceBatch{}
}

func (b *InstanceBatch) Reset() {
	b.n = 0
}

func (b *InstanceBatch) Append(in Instance) error {
	if b.n >= InstanceCapacity {
		return ErrCapacityExceeded
	}
	in.Encode(b.buf[b.n*InstanceStride:])
	b.n++
	return nil
}

func (b *InstanceBatch) Len() int {
	return b.n
}

// Bytes returns the encoded records. The slice aliases the batch.
func (b *InstanceBatch) Bytes() []byte {
	return b.buf[:b.n*InstanceStride]
}

// QuadVertex is one corner of the shared sprite quad.
type QuadVertex struct {
	Position mgl32.Vec2
	TexCoord mgl32.Vec2
}

func EncodeQuad(quad [QuadVertexCount]QuadVertex) []byte {
	out := make([]byte, QuadGeometrySize)
	for i, v := range quad {
		base := i * QuadVertexStride
		putVec2(out[base:], v.Position)
		putVec2(out[base+8:], v.TexCoord)
	}
	return out
}

// SpriteQuad builds the corners of a width x height sprite in pixels,
// anchored at (anchorX, anchorY) measured from its bottom-left corner, that
// samples a texWidth x texHeight region of the atlas starting at the origin.
// Corners are in triangle fan order starting at the top-left corner, which
// maps to texture coordinate (0, 0).
func SpriteQuad(width, height, anchorX, anchorY, texWidth, texHeight float32) [QuadVertexCount]QuadVertex {
	left, right := -anchorX, width-anchorX
	bottom, top := -anchorY, height-anchorY
	return [QuadVertexCount]QuadVertex{
		{Position: mgl32.Vec2{left, top}, TexCoord: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec2{left, bottom}, TexCoord: mgl32.Vec2{0, texHeight}},
		{Position: mgl32.Vec2{right, bottom}, TexCoord: mgl32.Vec2{texWidth, texHeight}},
		{Position: mgl32.Vec2{right, top}, TexCoord: mgl32.Vec2{texWidth, 0}},
	}
}

// FullscreenQuad covers clip space and maps it onto the whole texture.
func FullscreenQuad() [QuadVertexCount]QuadVertex {
	return [QuadVertexCount]QuadVertex{
		{Position: mgl32.Vec2{-1, -1}, TexCoord: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec2{1, -1}, TexCoord: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec2{1, 1}, TexCoord: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec2{-1, 1}, TexCoord: mgl32.Vec2{0, 1}},
	}
}

func putVec2(dst []byte, v mgl32.Vec2) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(v[1]))
}

func getVec2(src []byte) mgl32.Vec2 {
	return mgl32.Vec2{
		math.Float32frombits(binary.LittleEndian.Uint32(src[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(src[4:])),
	}
}
