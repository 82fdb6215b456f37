//go:build !js

// Package desktop opens a native window with an OpenGL 3.3 core context
// through GLFW. GLFW must be driven from the main thread: call
// runtime.LockOSThread in an init function of the binary.
package desktop

import (
	"fmt"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/kjkrol/gokpick/internal/platform"
	"github.com/kjkrol/gokpick/pkg/host"
)

type Window struct {
	win    *glfw.Window
	queue  *platform.EventQueue
	closed bool
}

var _ host.Window = (*Window)(nil)

func NewWindow(conf platform.WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.DepthBits, 0)

	win, err := glfw.CreateWindow(conf.Width, conf.Height, conf.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	if conf.PositionX != 0 || conf.PositionY != 0 {
		win.SetPos(conf.PositionX, conf.PositionY)
	}
	win.MakeContextCurrent()
	if conf.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	w := &Window{win: win, queue: platform.NewEventQueue(0)}
	w.installCallbacks()
	return w, nil
}

func (w *Window) installCallbacks() {
	w.win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		w.queue.Push(host.PointerMove{X: x, Y: y})
	})
	w.win.SetCursorEnterCallback(func(_ *glfw.Window, entered bool) {
		if !entered {
			w.queue.Push(host.PointerLeave{})
		}
	})
	w.win.SetFramebufferSizeCallback(func(win *glfw.Window, width, height int) {
		cw, ch := win.GetSize()
		w.queue.Push(host.Resize{
			Width:        width,
			Height:       height,
			ClientWidth:  float64(cw),
			ClientHeight: float64(ch),
		})
	})
	w.win.SetMouseButtonCallback(func(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		x, y := win.GetCursorPos()
		w.queue.Push(host.ButtonPress{Button: uint32(button) + 1, X: x, Y: y})
	})
	w.win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		w.queue.Push(host.KeyPress{Code: uint64(key), Label: keyLabel(key, scancode)})
	})
	w.win.SetCloseCallback(func(*glfw.Window) {
		w.queue.Push(host.CloseRequest{})
	})
}

func keyLabel(key glfw.Key, scancode int) string {
	switch key {
	case glfw.KeyEscape:
		return "Escape"
	case glfw.KeyEnter:
		return "Enter"
	case glfw.KeySpace:
		return " "
	}
	return glfw.GetKeyName(key, scancode)
}

// NextEvent processes pending GLFW events, sleeping in the platform wait
// when nothing is queued yet.
func (w *Window) NextEvent(timeout time.Duration) (host.Event, bool) {
	if ev, ok := w.queue.Pop(); ok {
		return ev, true
	}
	if timeout > 0 {
		glfw.WaitEventsTimeout(timeout.Seconds())
	} else {
		glfw.PollEvents()
	}
	return w.queue.Pop()
}

func (w *Window) Present() error {
	w.win.SwapBuffers()
	return nil
}

func (w *Window) Size() (int, int) {
	return w.win.GetFramebufferSize()
}

func (w *Window) ClientSize() (float64, float64) {
	width, height := w.win.GetSize()
	return float64(width), float64(height)
}

func (w *Window) GLContext() any { return w.win }

func (w *Window) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.win.Destroy()
	glfw.Terminate()
}
