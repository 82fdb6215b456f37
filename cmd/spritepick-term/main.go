// Command spritepick-term renders the sprite scene with the software device
// and shows it in the terminal, two pixels per character cell.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/kjkrol/gokpick/internal/app"
	"github.com/kjkrol/gokpick/internal/platform/term"
	"github.com/kjkrol/gokpick/pkg/gfx"
	"github.com/kjkrol/gokpick/pkg/host"
	"github.com/kjkrol/gokpick/pkg/softgpu"
)

type spritepickTerm struct {
	configPath  string
	logFile     string
	supersample int
	scale       float64
}

func (s *spritepickTerm) run() error {
	cfg, err := app.LoadConfig(s.configPath)
	if err != nil {
		return err
	}
	if s.scale > 0 {
		cfg.Sprites.Scale = float32(s.scale)
	}

	// The terminal is the display, logs go to a file or nowhere.
	if s.logFile != "" {
		f, err := os.Create(s.logFile)
		if err != nil {
			return fmt.Errorf("create log file: %w", err)
		}
		defer f.Close()
		if _, err := app.SetupLogging(f, cfg.LogLevel); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}

	dev := softgpu.New()
	defer dev.Close()

	win := term.NewWindow(screen, dev)
	defer win.Close()
	win.SetSupersample(s.supersample)
	c := cfg.ClearColor
	win.SetBackground(color.NRGBA{R: 16, G: 16, B: 16, A: 255})
	if c[3] > 0 {
		win.SetBackground(color.NRGBA{R: uint8(c[0] * 255), G: uint8(c[1] * 255), B: uint8(c[2] * 255), A: 255})
	}

	width, height := win.Size()
	cw, ch := win.ClientSize()
	session, err := app.NewSession(cfg, dev, width, height, app.WithClientSize(cw, ch))
	if err != nil {
		return err
	}
	defer session.Close()

	var last gfx.FrameResult
	loop := host.NewLoop(win, session.Driver, session.Viewport,
		host.WithRefreshRate(min(cfg.RefreshRate, 30)),
		host.WithFrameHandler(func(res gfx.FrameResult) { last = res }),
	)
	if err := loop.Run(ctx); err != nil {
		return err
	}
	gfx.Logger().Info("terminal host finished", "frames", last.Index+1, "target", last.Target)
	return nil
}

func main() {
	s := spritepickTerm{}
	flag.StringVar(&s.configPath, "config", "", "YAML configuration file (default "+app.DefaultConfigFile+")")
	flag.StringVar(&s.logFile, "log", "", "write logs to this file")
	flag.IntVar(&s.supersample, "supersample", 2, "rendered pixels per displayed pixel along each axis")
	flag.Float64Var(&s.scale, "scale", 0.25, "sprite scale, overrides the configuration")
	flag.Parse()

	if err := s.run(); err != nil {
		fmt.Fprintf(os.Stderr, "spritepick-term: %v\n", err)
		os.Exit(1)
	}
}
