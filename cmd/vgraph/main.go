// Command vgraph runs a video graph described by a YAML or HCL pipeline.
//
// Usage:
//
//	vgraph -config demo.hcl [-var name=value] [-frames N | -duration D] [-out frame.png]
//
// With -frames the graph runs offline on a manual clock as fast as it can
// render. Otherwise it runs in real time for -duration, or until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/vgraph"
	"github.com/gogpu/vgraph/config"
	_ "github.com/gogpu/vgraph/gpu" // GPU backends
	"github.com/gogpu/vgraph/sched"
)

// varFlags collects repeated -var name=value flags.
type varFlags map[string]string

func (v varFlags) String() string {
	parts := make([]string, 0, len(v))
	for k, val := range v {
		parts = append(parts, k+"="+val)
	}
	return strings.Join(parts, ",")
}

func (v varFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v[name] = value
	return nil
}

func main() {
	vars := varFlags{}
	var (
		configPath = flag.String("config", "", "pipeline file (.yaml, .yml or .hcl)")
		frames     = flag.Int("frames", 0, "render N frames offline, overriding the pipeline")
		duration   = flag.Duration("duration", 0, "run in real time for this long, overriding the pipeline")
		output     = flag.String("out", "", "write the last surface frame to this PNG file")
		raster     = flag.Bool("raster", false, "skip GPU backends")
		verbose    = flag.Bool("v", false, "debug logging")
		stats      = flag.Bool("statsview", false, "serve runtime statistics over HTTP")
	)
	flag.Var(vars, "var", "set an HCL variable (repeatable)")
	flag.Parse()

	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	vgraph.SetLogger(logger)

	if *stats {
		if !statsviewAvailable() {
			log.Fatal("statsview: rebuild with -tags statsview")
		}
		launchStatsview(os.Stderr)
	}

	p, err := config.Load(*configPath, config.StringVars(vars))
	if err != nil {
		log.Fatal(err)
	}
	if *raster {
		p.Raster = true
	}
	if *frames > 0 {
		p.Frames = *frames
	}
	if *duration > 0 {
		p.Frames, p.Duration = 0, config.Duration(*duration)
	}

	if err := run(p, logger, *output); err != nil {
		log.Fatal(err)
	}
}

func run(p *config.Pipeline, logger *slog.Logger, output string) error {
	var (
		g   *config.Graph
		err error
	)
	if p.Frames > 0 {
		g, err = runOffline(p, logger)
	} else {
		g, err = runRealtime(p, logger)
	}
	if err != nil {
		return err
	}
	defer g.Close()

	printStats(g)
	if err := g.Err(); err != nil {
		return err
	}
	if output != "" {
		if err := writeSnapshot(g, output); err != nil {
			return err
		}
		logger.Info("frame saved", "path", output)
	}
	return nil
}

// runOffline renders p.Frames frames on a manual clock.
func runOffline(p *config.Pipeline, logger *slog.Logger) (*config.Graph, error) {
	clock := sched.NewManual()
	g, err := config.Build(p, vgraph.WithScheduler(clock), vgraph.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline built", "name", p.Name, "mode", g.Context.Mode(), "backend", g.Context.Backend())

	period := time.Duration(float64(time.Second) / g.Context.FrameRate())
	bar := progressbar.Default(int64(p.Frames), p.Name)
	defer bar.Close()
	for range p.Frames {
		clock.Advance(period)
		if g.Err() != nil {
			break
		}
		_ = bar.Add(1)
	}
	return g, nil
}

// runRealtime runs p on the wall clock until its duration elapses or the
// process is interrupted.
func runRealtime(p *config.Pipeline, logger *slog.Logger) (*config.Graph, error) {
	g, err := config.Build(p, vgraph.WithScheduler(sched.NewTicker()), vgraph.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline running", "name", p.Name, "mode", g.Context.Mode(), "backend", g.Context.Backend())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if p.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.Duration))
		defer cancel()
	}

	failed := make(chan struct{})
	cancel := g.Context.OnUnavailable(func(string, error) { close(failed) })
	defer cancel()

	select {
	case <-ctx.Done():
	case <-failed:
	}
	return g, nil
}

func writeSnapshot(g *config.Graph, path string) error {
	img, err := g.Context.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// printStats prints the diagnostic tree of the output node.
func printStats(g *config.Graph) {
	if g.Output == nil {
		return
	}
	pr := message.NewPrinter(language.English)
	var walk func(fi vgraph.FrameInfo, depth int)
	walk = func(fi vgraph.FrameInfo, depth int) {
		pr.Printf("%s%-16s %5dx%-5d frames %d dropped %d\n",
			strings.Repeat("  ", depth), fi.Name, fi.Width, fi.Height, fi.TotalFrames, fi.DroppedFrames)
		for _, parent := range fi.Parents {
			walk(parent, depth+1)
		}
	}
	walk(g.Output.Info(), 0)
}
