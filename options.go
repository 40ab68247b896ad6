package vgraph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/vgraph/sched"
)

// DefaultFrameRate is the frame rate of a context created without
// WithFrameRate.
const DefaultFrameRate = 30

// Default surface size of a new context.
const (
	DefaultWidth  = 300
	DefaultHeight = 150
)

// ContextOption configures a Context during creation.
//
// Example:
//
//	ctx := vgraph.NewContext(
//	    vgraph.WithName("camera"),
//	    vgraph.WithFrameRate(15),
//	)
type ContextOption func(*contextOptions)

type contextOptions struct {
	name      string
	frameRate float64
	width     int
	height    int
	scheduler sched.Scheduler
	registry  *Registry
	logger    *slog.Logger
	now       func() time.Time
}

func defaultContextOptions() contextOptions {
	return contextOptions{
		name:      "vgraph",
		frameRate: DefaultFrameRate,
		width:     DefaultWidth,
		height:    DefaultHeight,
		now:       time.Now,
	}
}

// WithName sets the context name used in logs.
func WithName(name string) ContextOption {
	return func(o *contextOptions) {
		o.name = name
	}
}

// WithFrameRate sets the initial frame rate. Non-positive values are ignored.
func WithFrameRate(fps float64) ContextOption {
	return func(o *contextOptions) {
		if fps > 0 {
			o.frameRate = fps
		}
	}
}

// WithSize sets the initial surface size.
func WithSize(width, height int) ContextOption {
	return func(o *contextOptions) {
		o.width, o.height = width, height
	}
}

// WithScheduler sets the timer primitive driving destinations.
// The default is a wall-clock sched.Ticker.
func WithScheduler(s sched.Scheduler) ContextOption {
	return func(o *contextOptions) {
		o.scheduler = s
	}
}

// WithRegistry selects the GPU backend registry probed by Create.
// The default is the global registry populated by Register.
func WithRegistry(r *Registry) ContextOption {
	return func(o *contextOptions) {
		o.registry = r
	}
}

// WithLogger overrides the package logger for this context.
func WithLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) {
		o.logger = l
	}
}

// WithClock replaces time.Now for frame statistics.
func WithClock(now func() time.Time) ContextOption {
	return func(o *contextOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// CreateOptions configures Context.Create.
type CreateOptions struct {
	// Alpha requests a surface with an alpha channel.
	Alpha bool
	// PreferRaster skips GPU backends and uses the software raster surface.
	PreferRaster bool
}

// NodeOptions configures the resources a node allocates at construction.
//
// Use DefaultNodeOptions and override fields; the zero value disables the
// default program, the texture and size matching.
type NodeOptions struct {
	// Name identifies the node in logs and FrameInfo.
	Name string

	// UseDefaultProgram draws with the context's shared program.
	// Default: true.
	UseDefaultProgram bool

	// VertexShader and FragmentShader, when both set, build a program owned
	// by the node. It replaces the default program.
	VertexShader   string
	FragmentShader string

	// CreateTexture allocates a texture. Default: true.
	CreateTexture bool

	// UseFramebuffer attaches the texture to an offscreen framebuffer.
	// Default: false.
	UseFramebuffer bool

	// CreateRaster allocates a raster sub-surface when the context is in
	// raster mode. Default: false.
	CreateRaster bool

	// Width and Height set the initial size. Zero means the context size.
	Width  int
	Height int

	// MatchInputSize makes the node adopt its input's size on connect and on
	// every input resize. Default: true.
	MatchInputSize bool
}

// DefaultNodeOptions returns the documented defaults.
func DefaultNodeOptions() NodeOptions {
	return NodeOptions{
		Name:              "node",
		UseDefaultProgram: true,
		CreateTexture:     true,
		MatchInputSize:    true,
	}
}

// Validate reports inconsistent options.
func (o NodeOptions) Validate() error {
	if o.Width < 0 || o.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrInvalidOptions, o.Width, o.Height)
	}
	if (o.VertexShader == "") != (o.FragmentShader == "") {
		return fmt.Errorf("%w: custom program needs both vertex and fragment shaders", ErrInvalidOptions)
	}
	if o.UseFramebuffer && !o.CreateTexture {
		return fmt.Errorf("%w: framebuffer requires a texture", ErrInvalidOptions)
	}
	return nil
}

func (o NodeOptions) customProgram() bool {
	return o.VertexShader != "" && o.FragmentShader != ""
}
