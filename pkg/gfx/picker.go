package gfx

import (
	"fmt"
	"math"
)

// EntityID identifies a sprite on the identity surface. Zero is reserved.
type EntityID uint32

// NoTarget is the pick result for background pixels and absent queries.
const NoTarget EntityID = 0

// Bytes returns the id in attribute byte order, lowest byte first.
func (id EntityID) Bytes() [4]byte {
	return [4]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
}

// DecodeEntityID reassembles an identity pixel (r, g, b, a).
func DecodeEntityID(px [4]byte) EntityID {
	return EntityID(uint32(px[0]) | uint32(px[1])<<8 | uint32(px[2])<<16 | uint32(px[3])<<24)
}

// Coord is a framebuffer coordinate with the origin at the bottom-left pixel.
type Coord struct {
	X, Y int
}

// NoQuery is the coordinate sentinel meaning "nothing to pick this frame".
var NoQuery = Coord{X: -1, Y: -1}

// PointerToFramebuffer maps a pointer position in client pixels (origin at
// the top-left corner of a clientW x clientH element) to the framebuffer of
// fbW x fbH device pixels. Positions that fall outside the framebuffer map
// to NoQuery.
func PointerToFramebuffer(x, y, clientW, clientH float64, fbW, fbH int) Coord {
	if clientW <= 0 || clientH <= 0 || fbW <= 0 || fbH <= 0 {
		return NoQuery
	}
	fx := math.Floor(x * float64(fbW) / clientW)
	fy := math.Floor(float64(fbH) - y*float64(fbH)/clientH - 1)
	c := Coord{X: int(fx), Y: int(fy)}
	if c.X < 0 || c.Y < 0 || c.X >= fbW || c.Y >= fbH {
		return NoQuery
	}
	return c
}

// Picker reads single identity pixels from the offscreen framebuffer.
type Picker struct {
	dev     Device
	targets *RenderTargets
	px      [4]byte
}

func NewPicker(dev Device, targets *RenderTargets) *Picker {
	return &Picker{dev: dev, targets: targets}
}

// Resolve returns the entity drawn at c. The sentinel, coordinates outside
// the current attachments and background pixels all resolve to NoTarget.
// Only device failures are errors.
func (p *Picker) Resolve(c Coord) (EntityID, error) {
	if c == NoQuery {
		return NoTarget, nil
	}
	w, h := p.targets.Size()
	if c.X < 0 || c.Y < 0 || c.X >= w || c.Y >= h {
		return NoTarget, nil
	}
	if err := p.dev.ReadPixels(p.targets.Framebuffer(), IdentitySlot, c.X, c.Y, 1, 1, p.px[:]); err != nil {
		return NoTarget, fmt.Errorf("pick at %d,%d: %w", c.X, c.Y, err)
	}
	return DecodeEntityID(p.px), nil
}
