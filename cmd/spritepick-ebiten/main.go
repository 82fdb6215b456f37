// Command spritepick-ebiten renders the sprite scene with the software
// device and displays it through ebiten.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kjkrol/gokpick/internal/app"
	"github.com/kjkrol/gokpick/internal/platform"
	"github.com/kjkrol/gokpick/internal/platform/ebitenhost"
	"github.com/kjkrol/gokpick/pkg/gfx"
	"github.com/kjkrol/gokpick/pkg/softgpu"
)

type spritepickEbiten struct {
	configPath string
}

func (s *spritepickEbiten) run() error {
	cfg, err := app.LoadConfig(s.configPath)
	if err != nil {
		return err
	}
	log, err := app.SetupLogging(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, h := cfg.Window.Width, cfg.Window.Height
	dev := softgpu.New(softgpu.WithScreenSize(w, h))
	defer dev.Close()

	session, err := app.NewSession(cfg, dev, w, h,
		app.OnPick(func(_, next gfx.EntityID) {
			log.Debug("sprite under cursor", "id", next)
		}),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	game := ebitenhost.NewGame(ctx, session.Driver, session.Viewport, dev)
	return ebitenhost.Run(platform.WindowConfig{
		Title:  cfg.Window.Title,
		Width:  w,
		Height: h,
		VSync:  cfg.VSync,
	}, game, cfg.RefreshRate)
}

func main() {
	s := spritepickEbiten{}
	flag.StringVar(&s.configPath, "config", "", "YAML configuration file (default "+app.DefaultConfigFile+")")
	flag.Parse()

	if err := s.run(); err != nil {
		fmt.Fprintf(os.Stderr, "spritepick-ebiten: %v\n", err)
		os.Exit(1)
	}
}
