// Package gldevice implements gfx.Device on the GPU: OpenGL 3.3 core on
// desktop builds and WebGL2 in the browser.
package gldevice

import "github.com/kjkrol/gokpick/pkg/gfx"

// ContextProvider is implemented by windows that own a GL context.
type ContextProvider interface {
	GLContext() any
}

// Open creates a device on the window's context. The context must be
// current on the calling thread.
func Open(w ContextProvider) (gfx.Device, error) {
	return newDevice(w.GLContext())
}
