// Command spritepick renders the sprite scene in a native OpenGL window and
// highlights the sprite under the cursor.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/kjkrol/gokpick/internal/app"
	"github.com/kjkrol/gokpick/internal/gldevice"
	"github.com/kjkrol/gokpick/internal/platform"
	"github.com/kjkrol/gokpick/internal/platform/desktop"
	"github.com/kjkrol/gokpick/pkg/gfx"
	"github.com/kjkrol/gokpick/pkg/host"
)

func init() {
	// GLFW and the GL context must stay on the main thread.
	runtime.LockOSThread()
}

type spritepick struct {
	configPath string
	logLevel   string
}

func (s *spritepick) run() error {
	cfg, err := app.LoadConfig(s.configPath)
	if err != nil {
		return err
	}
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	log, err := app.SetupLogging(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	win, err := desktop.NewWindow(platform.WindowConfig{
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		VSync:  cfg.VSync,
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
			if next != gfx.NoTarget {
				log.Info("sprite under cursor", "id", next)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	loop := host.NewLoop(win, session.Driver, session.Viewport,
		host.WithRefreshRate(cfg.RefreshRate),
		host.WithStrategy(host.DrainMax(64)),
	)
	return loop.Run(ctx)
}

func main() {
	s := spritepick{}
	flag.StringVar(&s.configPath, "config", "", "YAML configuration file (default "+app.DefaultConfigFile+")")
	flag.StringVar(&s.logLevel, "log-level", "", "override the configured log level")
	flag.Parse()

	if err := s.run(); err != nil {
		fmt.Fprintf(os.Stderr, "spritepick: %v\n", err)
		os.Exit(1)
	}
}
