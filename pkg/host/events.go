// Package host connects a platform window to a gfx.FrameDriver: it turns
// window events into pick queries and resize requests and paces frames.
package host

import "fmt"

type Event interface{}

// PointerMove carries a pointer position in client coordinates, origin at
// the top-left corner of the drawable area.
type PointerMove struct {
	X, Y float64
}

// PointerLeave is sent when the pointer exits the drawable area.
type PointerLeave struct{}

type ButtonPress struct {
	Button uint32
	X, Y   float64
}

type KeyPress struct {
	Code  uint64
	Label string
}

// Resize reports the new drawable size in device pixels together with the
// client size pointer positions are measured in.
type Resize struct {
	Width, Height             int
	ClientWidth, ClientHeight float64
}

type CloseRequest struct{}

func (e Resize) String() string {
	return fmt.Sprintf("resize %dx%d (client %.0fx%.0f)", e.Width, e.Height, e.ClientWidth, e.ClientHeight)
}
