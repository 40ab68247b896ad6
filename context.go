package vgraph

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/vgraph/raster"
	"github.com/gogpu/vgraph/sched"
)

// Mode is the backend a context renders with.
type Mode uint8

const (
	// ModeUnavailable means the context has no surface: it was never
	// created, no backend could be obtained, or it was destroyed.
	ModeUnavailable Mode = iota
	// ModeGPU renders through a gpucore.Device.
	ModeGPU
	// ModeRaster renders on a software raster.Canvas.
	ModeRaster
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeUnavailable:
		return "unavailable"
	case ModeGPU:
		return "gpu"
	case ModeRaster:
		return "raster"
	default:
		return "unknown"
	}
}

// Context owns the drawing surface shared by one graph of nodes.
//
// Every exported method of a Context and of its nodes is serialized by a
// single lock, which the frame clock also takes for the duration of a
// tick. Notifications registered with OnUnavailable run after the lock is
// released, so they may call back into the graph.
type Context struct {
	mu   sync.Mutex
	opts contextOptions
	log  *slog.Logger
	fsm  machine

	mode      Mode
	frameRate float64
	backend   string
	gpu       gpucore.Device
	canvas    *raster.Canvas
	width     int
	height    int

	program gpucore.ProgramID
	vs, fs  gpucore.ShaderID

	destroyed bool
	failed    bool

	nodes       map[*node]struct{}
	nextObs     int
	unavailable map[int]func(reason string, err error)
	pending     []func()
}

// NewContext creates an uninitialized context. Call Create to obtain a
// surface.
func NewContext(opts ...ContextOption) *Context {
	o := defaultContextOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.scheduler == nil {
		o.scheduler = sched.NewTicker()
	}
	if o.registry == nil {
		o.registry = defaultRegistry
	}
	c := &Context{
		opts:        o,
		fsm:         newMachine("context "+o.name, contextTransitions),
		frameRate:   o.frameRate,
		width:       o.width,
		height:      o.height,
		nodes:       make(map[*node]struct{}),
		unavailable: make(map[int]func(string, error)),
	}
	c.log = o.logger
	if c.log == nil {
		c.log = Logger()
	}
	c.log = c.log.With("context", o.name)
	return c
}

func (c *Context) lock() { c.mu.Lock() }

// unlock releases the lock and runs queued notifications.
func (c *Context) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Create obtains a surface: a GPU device from the registry unless
// opts.PreferRaster is set, otherwise or on failure a raster canvas. When
// neither can be obtained the context stays in ModeUnavailable and Create
// still returns nil; check Available.
func (c *Context) Create(opts CreateOptions) error {
	c.lock()
	defer c.unlock()

	if c.destroyed {
		return &StateError{Entity: c.fsm.entity, Op: opCreate, From: StateUninitialized}
	}
	if err := c.fsm.fire(opCreate); err != nil {
		return err
	}

	if !opts.PreferRaster {
		if err := c.createGPU(opts); err != nil {
			c.log.Warn("vgraph: GPU unavailable, falling back to raster", "err", err)
		}
	}
	if c.mode == ModeUnavailable {
		cv, err := raster.New(c.width, c.height, opts.Alpha)
		if err != nil {
			c.log.Warn("vgraph: raster unavailable", "err", err)
			return nil
		}
		c.canvas = cv
		c.mode = ModeRaster
	}
	c.log.Info("vgraph: context created", "mode", c.mode, "backend", c.backend,
		"width", c.width, "height", c.height)
	return nil
}

func (c *Context) createGPU(opts CreateOptions) error {
	dev, name, err := c.opts.registry.NewDevice(DeviceOptions{
		Width:  c.width,
		Height: c.height,
		Alpha:  opts.Alpha,
	})
	if err != nil {
		return err
	}
	vs, err := dev.CreateShader(gpucore.StageVertex, dev.DefaultShaderSource(gpucore.StageVertex))
	if err != nil {
		dev.Destroy()
		return fmt.Errorf("default vertex shader: %w", err)
	}
	fs, err := dev.CreateShader(gpucore.StageFragment, dev.DefaultShaderSource(gpucore.StageFragment))
	if err != nil {
		dev.Destroy()
		return fmt.Errorf("default fragment shader: %w", err)
	}
	prog, err := dev.CreateProgram(vs, fs)
	if err != nil {
		dev.Destroy()
		return fmt.Errorf("default program: %w", err)
	}
	sch := c.opts.scheduler
	dev.OnLost(func() {
		sch.SetTimeout(0, func() {
			c.Destroy("context lost", gpucore.ErrDeviceLost)
		})
	})
	c.gpu, c.backend = dev, name
	c.vs, c.fs, c.program = vs, fs, prog
	c.mode = ModeGPU
	return nil
}

// Destroy tears the context down: every node that is not closed closes
// itself, then the default program and the surface are released. When err
// is non-nil the context is marked failed and OnUnavailable observers are
// notified with reason and err. All observers are dropped afterwards.
//
// Destroy is idempotent.
func (c *Context) Destroy(reason string, err error) {
	c.lock()
	defer c.unlock()
	c.destroyLocked(reason, err)
}

func (c *Context) destroyLocked(reason string, err error) {
	if c.destroyed {
		return
	}
	c.destroyed = true
	_ = c.fsm.fire(opDestroy)

	if err != nil {
		c.log.Warn("vgraph: context destroyed", "reason", reason, "err", err)
	} else {
		c.log.Info("vgraph: context destroyed", "reason", reason)
	}

	// disconnect signal
	for len(c.nodes) > 0 {
		for n := range c.nodes {
			n.closeLocked()
			break
		}
	}

	if c.gpu != nil {
		c.gpu.DeleteProgram(c.program)
		c.gpu.DeleteShader(c.vs)
		c.gpu.DeleteShader(c.fs)
		c.program, c.vs, c.fs = gpucore.InvalidID, gpucore.InvalidID, gpucore.InvalidID
		c.gpu.Destroy()
		c.gpu = nil
	}
	if c.canvas != nil {
		c.canvas.Clear()
		c.canvas = nil
	}
	c.mode = ModeUnavailable
	c.width, c.height = 0, 0

	if err != nil {
		c.failed = true
		for _, fn := range c.unavailable {
			fn := fn
			c.pending = append(c.pending, func() { fn(reason, err) })
		}
	}
	c.unavailable = make(map[int]func(string, error))
}

// OnUnavailable registers fn to be called when the context is destroyed
// with an error. The returned function cancels the registration.
func (c *Context) OnUnavailable(fn func(reason string, err error)) (cancel func()) {
	c.lock()
	defer c.unlock()
	id := c.nextObs
	c.nextObs++
	c.unavailable[id] = fn
	return func() {
		c.lock()
		delete(c.unavailable, id)
		c.unlock()
	}
}

// attach subscribes n to the disconnect signal.
func (c *Context) attach(n *node) { c.nodes[n] = struct{}{} }

func (c *Context) detach(n *node) { delete(c.nodes, n) }

// Name returns the context name.
func (c *Context) Name() string { return c.opts.name }

// Mode returns the current backend mode.
func (c *Context) Mode() Mode {
	c.lock()
	defer c.unlock()
	return c.mode
}

// Backend returns the name of the GPU backend in use, or "".
func (c *Context) Backend() string {
	c.lock()
	defer c.unlock()
	return c.backend
}

// Available reports whether the context holds a surface.
func (c *Context) Available() bool {
	c.lock()
	defer c.unlock()
	return c.mode != ModeUnavailable
}

// Failed reports whether the context was destroyed with an error.
func (c *Context) Failed() bool {
	c.lock()
	defer c.unlock()
	return c.failed
}

// State returns the lifecycle state.
func (c *Context) State() State {
	c.lock()
	defer c.unlock()
	return c.fsm.state
}

// FrameRate returns the target frame rate.
func (c *Context) FrameRate() float64 {
	c.lock()
	defer c.unlock()
	return c.frameRate
}

// SetFrameRate changes the target frame rate. Running destinations rearm
// their timers on their next tick. Non-positive values are ignored.
func (c *Context) SetFrameRate(fps float64) {
	if fps <= 0 {
		return
	}
	c.lock()
	defer c.unlock()
	c.frameRate = fps
}

// Width returns the surface width, or 0 without a surface.
func (c *Context) Width() int {
	c.lock()
	defer c.unlock()
	return c.width
}

// Height returns the surface height, or 0 without a surface.
func (c *Context) Height() int {
	c.lock()
	defer c.unlock()
	return c.height
}

// SetWidth resizes the surface width.
func (c *Context) SetWidth(width int) error {
	c.lock()
	defer c.unlock()
	return c.setSizeLocked(width, c.height)
}

// SetHeight resizes the surface height.
func (c *Context) SetHeight(height int) error {
	c.lock()
	defer c.unlock()
	return c.setSizeLocked(c.width, height)
}

// SetSize resizes the surface and, in GPU mode, the viewport. Nodes are not
// resized.
func (c *Context) SetSize(width, height int) error {
	c.lock()
	defer c.unlock()
	return c.setSizeLocked(width, height)
}

func (c *Context) setSizeLocked(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("vgraph: negative surface size %dx%d", width, height)
	}
	switch c.mode {
	case ModeGPU:
		if err := c.gpu.ResizeSurface(width, height); err != nil {
			return fmt.Errorf("vgraph: resize surface: %w", err)
		}
	case ModeRaster:
		if err := c.canvas.Resize(width, height); err != nil {
			return fmt.Errorf("vgraph: resize surface: %w", err)
		}
	default:
		return ErrContextUnavailable
	}
	c.width, c.height = width, height
	return nil
}

// Snapshot returns a copy of the presented surface.
func (c *Context) Snapshot() (*image.RGBA, error) {
	c.lock()
	defer c.unlock()
	return c.snapshotLocked()
}

func (c *Context) snapshotLocked() (*image.RGBA, error) {
	switch c.mode {
	case ModeGPU:
		img, err := c.gpu.ReadPixels(gpucore.InvalidID)
		if err != nil {
			return nil, fmt.Errorf("vgraph: read surface: %w", err)
		}
		return img, nil
	case ModeRaster:
		return c.canvas.Snapshot(), nil
	default:
		return nil, ErrContextUnavailable
	}
}

func (c *Context) now() time.Time { return c.opts.now() }

func (c *Context) scheduler() sched.Scheduler { return c.opts.scheduler }
