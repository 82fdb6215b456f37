// Command spritepick-bench renders frames headless on the software device,
// aiming the pick query at a different sprite every frame, and reports
// throughput and pick accuracy.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/kjkrol/gokpick/internal/app"
	"github.com/kjkrol/gokpick/pkg/gfx"
	"github.com/kjkrol/gokpick/pkg/softgpu"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

type benchmark struct {
	configPath string
	frames     int
	workers    int
	outDir     string

	done atomic.Int64
	hits atomic.Int64
}

type workerResult struct {
	frames  int
	hits    int
	elapsed time.Duration
}

func (b *benchmark) worker(ctx context.Context, cfg app.Config, n int, progress func()) (workerResult, *gfx.Pipeline, error) {
	w, h := cfg.Window.Width, cfg.Window.Height
	dev := softgpu.New(softgpu.WithScreenSize(w, h))

	// Frames are spaced one refresh period apart no matter how long they
	// take, so every run animates the same way.
	start := time.Unix(0, 0)
	var frame int
	clock := func() time.Time {
		return start.Add(time.Duration(frame) * time.Second / time.Duration(cfg.RefreshRate))
	}
	session, err := app.NewSession(cfg, dev, w, h, app.WithDriverOptions(gfx.WithClock(clock)))
	if err != nil {
		dev.Close()
		return workerResult{}, nil, err
	}

	ids := session.Scene.IDs()
	res := workerResult{}
	began := time.Now()
	for frame = 0; frame < n; frame++ {
		if err := ctx.Err(); err != nil {
			break
		}
		want := gfx.NoTarget
		if len(ids) > 0 {
			want = ids[frame%len(ids)]
			pos, _ := session.Scene.Position(want)
			session.Driver.SetQuery(session.Viewport.Pointer(float64(pos[0])*float64(w), float64(1-pos[1])*float64(h)))
		}
		out, err := session.Driver.Tick(ctx)
		if err != nil {
			session.Close()
			dev.Close()
			return res, nil, err
		}
		res.frames++
		if out.Target == want {
			res.hits++
		}
		progress()
	}
	res.elapsed = time.Since(began)
	return res, session.Pipeline, nil
}

func (b *benchmark) run() error {
	cfg, err := app.LoadConfig(b.configPath)
	if err != nil {
		return err
	}
	if _, err := app.SetupLogging(os.Stderr, cfg.LogLevel); err != nil {
		return err
	}

	total := b.frames * b.workers
	progress := func() {}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		pb := progressbar.Default(int64(total), "rendering")
		defer pb.Close()
		progress = func() { pb.Add(1) }
	}

	results := make([]workerResult, b.workers)
	pipelines := make([]*gfx.Pipeline, b.workers)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range b.workers {
		g.Go(func() error {
			res, p, err := b.worker(ctx, cfg, b.frames, func() {
				b.done.Add(1)
				progress()
			})
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			results[i], pipelines[i] = res, p
			b.hits.Add(int64(res.hits))
			return nil
		})
	}
	err = g.Wait()
	defer func() {
		for _, p := range pipelines {
			if p != nil {
				dev := p.Device()
				p.Close()
				dev.Close()
			}
		}
	}()
	if err != nil {
		return err
	}

	for i, r := range results {
		fps := float64(r.frames) / max(r.elapsed.Seconds(), 1e-9)
		slog.Info("worker finished", "worker", i, "frames", r.frames, "hits", r.hits, "elapsed", r.elapsed, "fps", fmt.Sprintf("%.1f", fps))
	}
	fmt.Printf("%d frames, %d sprites, %d/%d picks hit\n", b.done.Load(), cfg.Sprites.Count, b.hits.Load(), b.done.Load())

	if b.outDir != "" && len(pipelines) > 0 {
		return writeSnapshots(b.outDir, pipelines[0])
	}
	return nil
}

func writeSnapshots(dir string, p *gfx.Pipeline) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	diffuse, err := p.ReadDiffuse()
	if err != nil {
		return err
	}
	identity, err := p.ReadIdentity()
	if err != nil {
		return err
	}
	for name, img := range map[string]image.Image{"diffuse.png": diffuse, "identity.png": identity} {
		if err := writePNG(filepath.Join(dir, name), img); err != nil {
			return err
		}
	}
	slog.Info("snapshots written", "dir", dir)
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func main() {
	b := benchmark{}
	flag.StringVar(&b.configPath, "config", "", "YAML configuration file (default "+app.DefaultConfigFile+")")
	flag.IntVar(&b.frames, "frames", 600, "frames per worker")
	flag.IntVar(&b.workers, "workers", 1, "concurrent pipelines, each on its own device")
	flag.StringVar(&b.outDir, "out", "", "write diffuse and identity snapshots of the last frame here")
	flag.Parse()

	if b.frames <= 0 || b.workers <= 0 {
		fmt.Fprintln(os.Stderr, "spritepick-bench: -frames and -workers must be positive")
		os.Exit(2)
	}
	if err := b.run(); err != nil {
		fmt.Fprintf(os.Stderr, "spritepick-bench: %v\n", err)
		os.Exit(1)
	}
}
