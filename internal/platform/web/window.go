//go:build js && wasm

// Package web creates a canvas with a WebGL2 context and forwards DOM
// events to the host loop.
package web

import (
	"errors"
	"fmt"
	"math"
	"syscall/js"
	"time"

	"github.com/kjkrol/gokpick/internal/platform"
	"github.com/kjkrol/gokpick/pkg/host"
)

type listener struct {
	target js.Value
	typ    string
	fn     js.Func
}

type Window struct {
	canvas    js.Value
	gl        js.Value
	queue     *platform.EventQueue
	listeners []listener

	width, height    int
	clientW, clientH float64
	closed           bool
}

var _ host.Window = (*Window)(nil)

func NewWindow(conf platform.WindowConfig) (*Window, error) {
	doc := js.Global().Get("document")
	doc.Set("title", conf.Title)

	canvas := doc.Call("createElement", "canvas")
	style := canvas.Get("style")
	style.Set("width", fmt.Sprintf("%dpx", conf.Width))
	style.Set("height", fmt.Sprintf("%dpx", conf.Height))
	style.Set("border", fmt.Sprintf("%dpx solid black", conf.BorderWidth))
	style.Set("position", "absolute")
	style.Set("left", fmt.Sprintf("%dpx", conf.PositionX))
	style.Set("top", fmt.Sprintf("%dpx", conf.PositionY))
	canvas.Call("setAttribute", "tabindex", "0")
	doc.Get("body").Call("appendChild", canvas)

	gl := canvas.Call("getContext", "webgl2", map[string]any{
		"antialias": false,
		"depth":     false,
		"alpha":     true,
	})
	if gl.IsNull() || gl.IsUndefined() {
		canvas.Call("remove")
		return nil, errors.New("webgl2 is not available")
	}

	w := &Window{
		canvas: canvas,
		gl:     gl,
		queue:  platform.NewEventQueue(0),
	}
	w.syncSize()
	w.installListeners(doc)
	canvas.Call("focus")
	return w, nil
}

// syncSize sizes the drawing buffer to the canvas' CSS box times the device
// pixel ratio and reports whether anything changed.
func (w *Window) syncSize() bool {
	dpr := js.Global().Get("devicePixelRatio").Float()
	if dpr <= 0 || math.IsNaN(dpr) {
		dpr = 1
	}
	rect := w.canvas.Call("getBoundingClientRect")
	cw, ch := rect.Get("width").Float(), rect.Get("height").Float()
	width, height := int(math.Round(cw*dpr)), int(math.Round(ch*dpr))
	if width == w.width && height == w.height && cw == w.clientW && ch == w.clientH {
		return false
	}
	w.canvas.Set("width", width)
	w.canvas.Set("height", height)
	w.width, w.height = width, height
	w.clientW, w.clientH = cw, ch
	return true
}

func (w *Window) addEventListener(target js.Value, event string, f func(js.Value)) {
	fn := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		f(args[0])
		return nil
	})
	target.Call("addEventListener", event, fn)
	w.listeners = append(w.listeners, listener{target: target, typ: event, fn: fn})
}

// canvasCoords returns the event position relative to the canvas in CSS
// pixels.
func (w *Window) canvasCoords(e js.Value) (float64, float64) {
	rect := w.canvas.Call("getBoundingClientRect")
	return e.Get("clientX").Float() - rect.Get("left").Float(),
		e.Get("clientY").Float() - rect.Get("top").Float()
}

func (w *Window) installListeners(doc js.Value) {
	w.addEventListener(w.canvas, "pointermove", func(e js.Value) {
		x, y := w.canvasCoords(e)
		w.queue.Push(host.PointerMove{X: x, Y: y})
	})
	w.addEventListener(w.canvas, "pointerleave", func(js.Value) {
		w.queue.Push(host.PointerLeave{})
	})
	w.addEventListener(w.canvas, "mousedown", func(e js.Value) {
		e.Call("preventDefault")
		x, y := w.canvasCoords(e)
		// DOM buttons are 0-based, host buttons 1-based.
		w.queue.Push(host.ButtonPress{Button: uint32(e.Get("button").Int() + 1), X: x, Y: y})
	})
	w.addEventListener(w.canvas, "contextmenu", func(e js.Value) {
		e.Call("preventDefault")
	})
	w.addEventListener(doc, "keydown", func(e js.Value) {
		w.queue.Push(host.KeyPress{Label: e.Get("key").String()})
	})
	w.addEventListener(js.Global(), "resize", func(js.Value) {
		if w.syncSize() {
			w.queue.Push(host.Resize{
				Width:        w.width,
				Height:       w.height,
				ClientWidth:  w.clientW,
				ClientHeight: w.clientH,
			})
		}
	})
	w.addEventListener(js.Global(), "pagehide", func(js.Value) {
		w.queue.Push(host.CloseRequest{})
	})
}

// NextEvent blocks on the queue, which also yields to the browser so DOM
// callbacks and compositing can run.
func (w *Window) NextEvent(timeout time.Duration) (host.Event, bool) {
	if timeout <= 0 {
		// Yield anyway; the JS event loop only runs while Go is blocked.
		timeout = time.Millisecond
	}
	return w.queue.Wait(timeout)
}

// Present is a no-op: the browser shows the drawing buffer once control
// returns to it.
func (w *Window) Present() error { return nil }

func (w *Window) Size() (int, int) { return w.width, w.height }

func (w *Window) ClientSize() (float64, float64) { return w.clientW, w.clientH }

func (w *Window) GLContext() any { return w.gl }

func (w *Window) Close() {
	if w.closed {
		return
	}
	w.closed = true
	for _, l := range w.listeners {
		l.target.Call("removeEventListener", l.typ, l.fn)
		l.fn.Release()
	}
	w.listeners = nil
	w.canvas.Call("remove")
}
