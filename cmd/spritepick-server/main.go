// Command spritepick-server serves the WebAssembly build of spritepick.
// The directory given with -dir must hold main.wasm and wasm_exec.js.
package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kjkrol/gokpick/internal/app"
)

//go:embed index.html
var indexHTML []byte

type server struct {
	addr     string
	dir      string
	logLevel string
}

// handler serves the embedded page at the root and files from dir
// elsewhere. Wasm modules need their own content type for streaming
// compilation.
func (s *server) handler() http.Handler {
	files := http.FileServer(http.Dir(s.dir))
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == "/index.html" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write(indexHTML)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".wasm") {
			w.Header().Set("Content-Type", "application/wasm")
		}
		files.ServeHTTP(w, r)
	})
	return logRequests(mux)
}

func (s *server) run() error {
	if _, err := app.SetupLogging(os.Stderr, s.logLevel); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: s.addr, Handler: s.handler()}
	errc := make(chan error, 1)
	go func() {
		slog.Info("serving", "url", "http://localhost"+s.addr, "dir", s.dir)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func logRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("request", "method", r.Method, "path", r.URL.Path)
		h.ServeHTTP(w, r)
	})
}

func main() {
	s := server{}
	flag.StringVar(&s.addr, "addr", ":8080", "listen address")
	flag.StringVar(&s.dir, "dir", "web", "directory with main.wasm and wasm_exec.js")
	flag.StringVar(&s.logLevel, "log-level", "info", "log level")
	flag.Parse()

	if err := s.run(); err != nil {
		fmt.Fprintf(os.Stderr, "spritepick-server: %v\n", err)
		os.Exit(1)
	}
}
