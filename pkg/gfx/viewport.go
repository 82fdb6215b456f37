package gfx

import "sync"

// Viewport tracks the drawable size in device pixels together with the
// client size the pointer is reported in. Hosts update it from resize
// events and read it from input handlers on other goroutines.
type Viewport struct {
	mu      sync.RWMutex
	width   int
	height  int
	clientW float64
	clientH float64
	version uint64
}

func NewViewport(width, height int, clientW, clientH float64) *Viewport {
	v := &Viewport{}
	v.setLocked(width, height, clientW, clientH)
	return v
}

func (v *Viewport) Size() (width, height int) {
	v.mu.RLock()
	width, height = v.width, v.height
	v.mu.RUnlock()
	return width, height
}

func (v *Viewport) ClientSize() (width, height float64) {
	v.mu.RLock()
	width, height = v.clientW, v.clientH
	v.mu.RUnlock()
	return width, height
}

// PixelRatio is the number of device pixels per client pixel horizontally.
func (v *Viewport) PixelRatio() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.clientW <= 0 {
		return 1
	}
	return float64(v.width) / v.clientW
}

func (v *Viewport) Version() uint64 {
	v.mu.RLock()
	version := v.version
	v.mu.RUnlock()
	return version
}

// Set stores new sizes and reports whether anything changed.
func (v *Viewport) Set(width, height int, clientW, clientH float64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setLocked(width, height, clientW, clientH)
}

// Pointer converts a client-space pointer position to a pick coordinate.
func (v *Viewport) Pointer(x, y float64) Coord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return PointerToFramebuffer(x, y, v.clientW, v.clientH, v.width, v.height)
}

func (v *Viewport) setLocked(width, height int, clientW, clientH float64) bool {
	if clientW <= 0 {
		clientW = float64(width)
	}
	if clientH <= 0 {
		clientH = float64(height)
	}
	if width == v.width && height == v.height && clientW == v.clientW && clientH == v.clientH {
		return false
	}
	v.width, v.height = width, height
	v.clientW, v.clientH = clientW, clientH
	v.version++
	return true
}
