package softgpu

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// surface is an RGBA8 image stored bottom-up: row 0 is y=0, which is also
// texture coordinate t=0.
type surface struct {
	width, height int
	filter        filterMode
	pix           []byte
}

type filterMode int

const (
	filterNearest filterMode = iota
	filterLinear
)

func newSurface(width, height int, filter filterMode) *surface {
	return &surface{width: width, height: height, filter: filter, pix: make([]byte, width*height*4)}
}

func (s *surface) fill(rgba [4]byte) {
	for i := 0; i < len(s.pix); i += 4 {
		copy(s.pix[i:i+4], rgba[:])
	}
}

func (s *surface) set(x, y int, c mgl32.Vec4) {
	i := (y*s.width + x) * 4
	s.pix[i+0] = toByte(c[0])
	s.pix[i+1] = toByte(c[1])
	s.pix[i+2] = toByte(c[2])
	s.pix[i+3] = toByte(c[3])
}

func (s *surface) texel(x, y int) mgl32.Vec4 {
	if x < 0 {
		x = 0
	} else if x >= s.width {
		x = s.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= s.height {
		y = s.height - 1
	}
	i := (y*s.width + x) * 4
	return mgl32.Vec4{
		float32(s.pix[i+0]) / 255,
		float32(s.pix[i+1]) / 255,
		float32(s.pix[i+2]) / 255,
		float32(s.pix[i+3]) / 255,
	}
}

// sample reads the surface at normalized coordinates with clamp-to-edge
// wrapping.
func (s *surface) sample(u, v float32) mgl32.Vec4 {
	if s.width == 0 || s.height == 0 {
		return mgl32.Vec4{0, 0, 0, 1}
	}
	x := float64(u) * float64(s.width)
	y := float64(v) * float64(s.height)
	if s.filter == filterNearest {
		return s.texel(int(math.Floor(x)), int(math.Floor(y)))
	}
	x -= 0.5
	y -= 0.5
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := float32(x-x0), float32(y-y0)
	ix, iy := int(x0), int(y0)
	a := s.texel(ix, iy).Mul(1 - fx).Add(s.texel(ix+1, iy).Mul(fx))
	b := s.texel(ix, iy+1).Mul(1 - fx).Add(s.texel(ix+1, iy+1).Mul(fx))
	return a.Mul(1 - fy).Add(b.Mul(fy))
}

func toByte(v float32) byte {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

// depthSurface is a 16-bit depth buffer.
type depthSurface struct {
	width, height int
	values        []uint16
}

func newDepthSurface(width, height int) *depthSurface {
	return &depthSurface{width: width, height: height, values: make([]uint16, width*height)}
}

func (d *depthSurface) fill(depth float32) {
	v := toDepth(depth)
	for i := range d.values {
		d.values[i] = v
	}
}

func toDepth(z float32) uint16 {
	if z <= 0 || z != z {
		return 0
	}
	if z >= 1 {
		return math.MaxUint16
	}
	return uint16(z*math.MaxUint16 + 0.5)
}
