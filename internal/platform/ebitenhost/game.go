// Package ebitenhost runs the frame driver inside an ebiten game. ebiten
// owns the window and the update loop; frames are rendered by a software
// device and uploaded to an ebiten image for display.
package ebitenhost

import (
	"context"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/kjkrol/gokpick/internal/platform"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

// FrameReader returns the frame last drawn to the default framebuffer,
// rows top-down.
type FrameReader interface {
	Screen() *image.NRGBA
}

type Game struct {
	ctx      context.Context
	driver   *gfx.FrameDriver
	viewport *gfx.Viewport
	frames   FrameReader

	img     *ebiten.Image
	outside bool
	onFrame func(gfx.FrameResult)
}

var _ ebiten.Game = (*Game)(nil)

func NewGame(ctx context.Context, driver *gfx.FrameDriver, viewport *gfx.Viewport, frames FrameReader) *Game {
	return &Game{ctx: ctx, driver: driver, viewport: viewport, frames: frames, outside: true}
}

// OnFrame registers fn to run after each rendered frame.
func (g *Game) OnFrame(fn func(gfx.FrameResult)) { g.onFrame = fn }

// Run opens the window and blocks until it closes.
func Run(conf platform.WindowConfig, g *Game, tps int) error {
	ebiten.SetWindowTitle(conf.Title)
	ebiten.SetWindowSize(conf.Width, conf.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(conf.VSync)
	if tps > 0 {
		ebiten.SetTPS(tps)
	}
	return ebiten.RunGame(g)
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	g.trackCursor()
	res, err := g.driver.Tick(g.ctx)
	if err != nil {
		return err
	}
	if g.onFrame != nil {
		g.onFrame(res)
	}
	return nil
}

func (g *Game) trackCursor() {
	x, y := ebiten.CursorPosition()
	cw, ch := g.viewport.ClientSize()
	fx, fy := float64(x)+0.5, float64(y)+0.5
	if fx < 0 || fy < 0 || fx >= cw || fy >= ch {
		if !g.outside {
			g.driver.ClearQuery()
			g.outside = true
		}
		return
	}
	g.outside = false
	g.driver.SetQuery(g.viewport.Pointer(fx, fy))
}

func (g *Game) Draw(screen *ebiten.Image) {
	frame := g.frames.Screen()
	w, h := frame.Rect.Dx(), frame.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}
	if g.img == nil || g.img.Bounds().Dx() != w || g.img.Bounds().Dy() != h {
		if g.img != nil {
			g.img.Deallocate()
		}
		g.img = ebiten.NewImage(w, h)
	}
	// ebiten images hold premultiplied alpha.
	g.img.WritePixels(premultiply(frame.Pix))
	screen.DrawImage(g.img, nil)
}

// Layout follows the window size one to one; a change is handed to the
// driver as a resize request applied at the next frame.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 &&
		g.viewport.Set(outsideWidth, outsideHeight, float64(outsideWidth), float64(outsideHeight)) {
		if err := g.driver.RequestResize(outsideWidth, outsideHeight); err != nil {
			gfx.Logger().Warn("resize rejected", "width", outsideWidth, "height", outsideHeight, "err", err)
		}
	}
	return g.viewport.Size()
}

func premultiply(pix []byte) []byte {
	out := make([]byte, len(pix))
	for i := 0; i+3 < len(pix); i += 4 {
		a := uint32(pix[i+3])
		out[i] = byte((uint32(pix[i])*a + 127) / 255)
		out[i+1] = byte((uint32(pix[i+1])*a + 127) / 255)
		out[i+2] = byte((uint32(pix[i+2])*a + 127) / 255)
		out[i+3] = byte(a)
	}
	return out
}
