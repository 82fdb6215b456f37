package term_test

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/kjkrol/gokpick/internal/platform/term"
	"github.com/kjkrol/gokpick/pkg/host"
)

type staticFrame struct{ img *image.NRGBA }

func (f staticFrame) Screen() *image.NRGBA { return f.img }

func newScreen(t *testing.T, cols, rows int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	screen.SetSize(cols, rows)
	return screen
}

// resizeTo changes the terminal size and waits until the window saw it.
func resizeTo(t *testing.T, screen tcell.SimulationScreen, w *term.Window, cols, rows int) host.Resize {
	t.Helper()
	screen.SetSize(cols, rows)
	if err := screen.PostEvent(tcell.NewEventResize(cols, rows)); err != nil {
		t.Fatalf("PostEvent: %v", err)
	}
	ev := waitFor(t, w, func(ev host.Event) bool {
		r, ok := ev.(host.Resize)
		return ok && r.ClientWidth == float64(cols) && r.ClientHeight == float64(rows)
	})
	return ev.(host.Resize)
}

// waitFor returns the first event accepted by match, skipping others.
func waitFor(t *testing.T, w *term.Window, match func(host.Event) bool) host.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev, ok := w.NextEvent(50 * time.Millisecond)
		if ok && match(ev) {
			return ev
		}
	}
	t.Fatalf("event not received")
	return nil
}

func notResize(ev host.Event) bool {
	_, ok := ev.(host.Resize)
	return !ok
}

func TestWindow_PresentHalfBlocks(t *testing.T) {
	screen := newScreen(t, 2, 2)
	frame := image.NewNRGBA(image.Rect(0, 0, 2, 4))
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	frame.SetNRGBA(0, 0, red)
	frame.SetNRGBA(0, 1, blue)
	// Fully transparent pixels show the background.
	frame.SetNRGBA(1, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 0})

	w := term.NewWindow(screen, staticFrame{frame})
	defer w.Close()
	resizeTo(t, screen, w, 2, 2)
	w.SetBackground(color.NRGBA{G: 40, A: 255})
	if err := w.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}

	r, _, style, _ := screen.GetContent(0, 0)
	if r != '▀' {
		t.Errorf("cell rune = %q, want upper half block", r)
	}
	fg, bg, _ := style.Decompose()
	if fg != tcell.NewRGBColor(255, 0, 0) || bg != tcell.NewRGBColor(0, 0, 255) {
		t.Errorf("cell (0,0) colors fg=%v bg=%v, want red over blue", fg, bg)
	}
	_, _, style, _ = screen.GetContent(1, 1)
	fg, _, _ = style.Decompose()
	if fg != tcell.NewRGBColor(0, 40, 0) {
		t.Errorf("transparent pixel shows %v, want the background", fg)
	}
}

func TestWindow_Supersample(t *testing.T) {
	screen := newScreen(t, 3, 2)
	frame := image.NewNRGBA(image.Rect(0, 0, 6, 8))
	for i := 0; i < len(frame.Pix); i += 4 {
		frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2], frame.Pix[i+3] = 10, 200, 30, 255
	}
	w := term.NewWindow(screen, staticFrame{frame})
	defer w.Close()
	w.SetSupersample(2)
	resizeTo(t, screen, w, 3, 2)

	if width, height := w.Size(); width != 6 || height != 8 {
		t.Errorf("Size = %dx%d, want 6x8", width, height)
	}
	if cw, ch := w.ClientSize(); cw != 3 || ch != 2 {
		t.Errorf("ClientSize = %vx%v, want 3x2", cw, ch)
	}
	if err := w.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	_, _, style, _ := screen.GetContent(2, 1)
	fg, bg, _ := style.Decompose()
	want := tcell.NewRGBColor(10, 200, 30)
	if fg != want || bg != want {
		t.Errorf("downsampled cell fg=%v bg=%v, want %v", fg, bg, want)
	}
}

func TestWindow_Events(t *testing.T) {
	screen := newScreen(t, 10, 5)
	w := term.NewWindow(screen, staticFrame{image.NewNRGBA(image.Rect(0, 0, 10, 10))})
	defer w.Close()
	resizeTo(t, screen, w, 10, 5)

	tests := []struct {
		name string
		ev   tcell.Event
		want host.Event
	}{
		{"mouse motion", tcell.NewEventMouse(3, 2, tcell.ButtonNone, tcell.ModNone), host.PointerMove{X: 3.5, Y: 2.5}},
		{"mouse click", tcell.NewEventMouse(1, 1, tcell.Button1, tcell.ModNone), host.ButtonPress{Button: 1, X: 1.5, Y: 1.5}},
		{"mouse outside", tcell.NewEventMouse(12, 1, tcell.ButtonNone, tcell.ModNone), host.PointerLeave{}},
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), host.KeyPress{Code: uint64(tcell.KeyEscape), Label: "Escape"}},
		{"rune", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), host.KeyPress{Code: 'q', Label: "q"}},
		{"ctrl-c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), host.CloseRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := screen.PostEvent(tt.ev); err != nil {
				t.Fatalf("PostEvent: %v", err)
			}
			if got := waitFor(t, w, notResize); got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestWindow_Resize(t *testing.T) {
	screen := newScreen(t, 10, 5)
	w := term.NewWindow(screen, staticFrame{image.NewNRGBA(image.Rect(0, 0, 10, 10))})
	defer w.Close()

	got := resizeTo(t, screen, w, 20, 8)
	want := host.Resize{Width: 20, Height: 16, ClientWidth: 20, ClientHeight: 8}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if width, height := w.Size(); width != 20 || height != 16 {
		t.Errorf("Size = %dx%d after resize, want 20x16", width, height)
	}
}
