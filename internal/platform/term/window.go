// Package term shows software-rendered frames in a terminal. Every cell
// carries two pixels stacked vertically: the upper half block is drawn in
// the top pixel's color over a background of the bottom pixel's color.
package term

import (
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/kjkrol/gokpick/internal/platform"
	"github.com/kjkrol/gokpick/pkg/host"
	xdraw "golang.org/x/image/draw"
)

const upperHalfBlock = '▀'

// FrameReader returns the frame last drawn to the default framebuffer,
// rows top-down.
type FrameReader interface {
	Screen() *image.NRGBA
}

type Window struct {
	screen tcell.Screen
	frames FrameReader
	queue  *platform.EventQueue
	bg     color.NRGBA
	// scale is the number of rendered pixels per displayed pixel along
	// each axis.
	scale  int
	shrunk *image.NRGBA

	mu     sync.Mutex
	cols   int
	rows   int
	done   chan struct{}
	closed bool
}

var _ host.Window = (*Window)(nil)

// NewWindow takes an initialized screen and starts reading its events.
// Close finalizes the screen.
func NewWindow(screen tcell.Screen, frames FrameReader) *Window {
	screen.EnableMouse(tcell.MouseMotionEvents)
	screen.HideCursor()
	cols, rows := screen.Size()
	w := &Window{
		screen: screen,
		frames: frames,
		queue:  platform.NewEventQueue(0),
		scale:  1,
		cols:   cols,
		rows:   rows,
		done:   make(chan struct{}),
	}
	go w.pump()
	return w
}

// SetBackground sets the color transparent pixels are blended over.
func (w *Window) SetBackground(c color.NRGBA) { w.bg = c }

// SetSupersample renders n x n pixels for every displayed pixel and
// filters them down on Present. Call it before the first frame.
func (w *Window) SetSupersample(n int) {
	w.scale = max(n, 1)
}

func (w *Window) pump() {
	for {
		ev := w.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case <-w.done:
			return
		default:
		}
		if hev, ok := w.convert(ev); ok {
			w.queue.Push(hev)
		}
	}
}

func (w *Window) convert(ev tcell.Event) (host.Event, bool) {
	switch e := ev.(type) {
	case *tcell.EventMouse:
		x, y := e.Position()
		cols, rows := w.cells()
		if x < 0 || y < 0 || x >= cols || y >= rows {
			return host.PointerLeave{}, true
		}
		// Aim at the cell center.
		fx, fy := float64(x)+0.5, float64(y)+0.5
		if e.Buttons()&tcell.Button1 != 0 {
			return host.ButtonPress{Button: 1, X: fx, Y: fy}, true
		}
		return host.PointerMove{X: fx, Y: fy}, true
	case *tcell.EventKey:
		switch e.Key() {
		case tcell.KeyEscape:
			return host.KeyPress{Code: uint64(e.Key()), Label: "Escape"}, true
		case tcell.KeyCtrlC:
			return host.CloseRequest{}, true
		case tcell.KeyRune:
			return host.KeyPress{Code: uint64(e.Rune()), Label: string(e.Rune())}, true
		default:
			return host.KeyPress{Code: uint64(e.Key()), Label: e.Name()}, true
		}
	case *tcell.EventResize:
		cols, rows := e.Size()
		w.mu.Lock()
		w.cols, w.rows = cols, rows
		w.mu.Unlock()
		return host.Resize{
			Width:        cols * w.scale,
			Height:       rows * 2 * w.scale,
			ClientWidth:  float64(cols),
			ClientHeight: float64(rows),
		}, true
	}
	return nil, false
}

func (w *Window) cells() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cols, w.rows
}

func (w *Window) NextEvent(timeout time.Duration) (host.Event, bool) {
	return w.queue.Wait(timeout)
}

// Present copies the current frame into the terminal cells.
func (w *Window) Present() error {
	cols, rows := w.cells()
	frame := w.downsample(w.frames.Screen(), cols, rows*2)
	b := frame.Bounds()
	for row := 0; row < rows; row++ {
		for x := 0; x < cols; x++ {
			top := w.pixel(frame, b, x, row*2)
			bottom := w.pixel(frame, b, x, row*2+1)
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			w.screen.SetContent(x, row, upperHalfBlock, nil, style)
		}
	}
	w.screen.Show()
	return nil
}

func (w *Window) downsample(frame *image.NRGBA, width, height int) *image.NRGBA {
	if b := frame.Bounds(); b.Dx() == width && b.Dy() == height {
		return frame
	}
	if w.shrunk == nil || w.shrunk.Rect.Dx() != width || w.shrunk.Rect.Dy() != height {
		w.shrunk = image.NewNRGBA(image.Rect(0, 0, width, height))
	}
	xdraw.BiLinear.Scale(w.shrunk, w.shrunk.Rect, frame, frame.Bounds(), xdraw.Src, nil)
	return w.shrunk
}

func (w *Window) pixel(frame *image.NRGBA, b image.Rectangle, x, y int) tcell.Color {
	if !(image.Point{X: x, Y: y}).In(b) {
		return tcell.NewRGBColor(int32(w.bg.R), int32(w.bg.G), int32(w.bg.B))
	}
	c := frame.NRGBAAt(x, y)
	blend := func(fg, bg uint8) int32 {
		return int32((uint32(fg)*uint32(c.A) + uint32(bg)*(255-uint32(c.A)) + 127) / 255)
	}
	return tcell.NewRGBColor(blend(c.R, w.bg.R), blend(c.G, w.bg.G), blend(c.B, w.bg.B))
}

// Size is the drawable size in pixels, two per cell row before
// supersampling.
func (w *Window) Size() (int, int) {
	cols, rows := w.cells()
	return cols * w.scale, rows * 2 * w.scale
}

// ClientSize is measured in cells, the unit mouse events arrive in.
func (w *Window) ClientSize() (float64, float64) {
	cols, rows := w.cells()
	return float64(cols), float64(rows)
}

func (w *Window) GLContext() any { return nil }

func (w *Window) Close() {
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	w.screen.Fini()
}
