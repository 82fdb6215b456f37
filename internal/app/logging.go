package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kjkrol/gokpick/pkg/gfx"
)

// ParseLevel accepts the slog level names in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// SetupLogging installs a text logger on w as the process default and
// routes the rendering packages through it.
func SetupLogging(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(l)
	gfx.SetLogger(l)
	return l, nil
}
