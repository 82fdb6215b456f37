//go:build js && wasm

// Command spritepick-wasm runs the sprite scene on a WebGL2 canvas. Build
// it with GOOS=js GOARCH=wasm and serve it with spritepick-server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kjkrol/gokpick/internal/app"
	"github.com/kjkrol/gokpick/internal/gldevice"
	"github.com/kjkrol/gokpick/internal/platform"
	"github.com/kjkrol/gokpick/internal/platform/web"
	"github.com/kjkrol/gokpick/pkg/gfx"
	"github.com/kjkrol/gokpick/pkg/host"
)

func run() error {
	// There is no file system to read a config from.
	cfg := app.Default()
	cfg.Sprites.Speed = 0.05
	log, err := app.SetupLogging(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}

	win, err := web.NewWindow(platform.WindowConfig{
		PositionX:   20,
		PositionY:   20,
		Width:       cfg.Window.Width,
		Height:      cfg.Window.Height,
		BorderWidth: 1,
		Title:       cfg.Window.Title,
	})
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := gldevice.Open(win)
	if err != nil {
		return err
	}
	defer dev.Close()

	width, height := win.Size()
	cw, ch := win.ClientSize()
	session, err := app.NewSession(cfg, dev, width, height,
		app.WithClientSize(cw, ch),
		app.OnPick(func(_, next gfx.EntityID) {
			log.Info("sprite under cursor", "id", next)
		}),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	loop := host.NewLoop(win, session.Driver, session.Viewport,
		host.WithRefreshRate(cfg.RefreshRate),
	)
	return loop.Run(context.Background())
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "spritepick-wasm: %v\n", err)
	}
}
