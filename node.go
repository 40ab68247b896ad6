package vgraph

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/vgraph/raster"
)

// Node is a vertex of the video graph.
//
// All node kinds share the lifecycle
// uninitialized -> connected -> uninitialized -> closed, the pull protocol
// (RequestFrame) and size propagation (Resize). Node is implemented only by
// the node types of this package.
type Node interface {
	ID() string
	Name() string
	State() State
	Context() *Context

	Width() int
	Height() int
	Position() (x, y int)
	SetPosition(x, y int)
	TotalFrames() uint64
	DroppedFrames() int64

	// Input returns the upstream node, or nil.
	Input() Node
	// Output returns the downstream node, or nil.
	Output() Node

	// Connect makes target the output of this node.
	Connect(target Node) error
	// ConnectMix inserts this node into mix at layout.ZIndex.
	ConnectMix(mix *MixNode, layout Layout) error
	// Disconnect detaches this node from its output. It never fails.
	Disconnect()
	// Close releases the node permanently. Closing twice is a no-op.
	Close()

	// RequestFrame pulls a frame through the graph and reports whether this
	// node produced one.
	RequestFrame(seq uint64) bool
	// Resize sets the node size and propagates it downstream.
	Resize(width, height int)
	// Info returns a diagnostic snapshot including upstream snapshots.
	Info() FrameInfo

	base() *node
}

// kind is the per-type behaviour of a node. *node provides the defaults;
// node types override what they change.
type kind interface {
	render(seq uint64) bool
	render2d(seq uint64) bool
	addInput(src *node, layout *Layout) error
	removeInput(src *node)
	resize(width, height int)
	parents() []FrameInfo
	rasterImage() image.Image
	release()
}

// node holds the state shared by every node kind.
type node struct {
	self kind
	pub  Node
	ctx  *Context
	log  *slog.Logger
	fsm  machine

	id             string
	name           string
	matchInputSize bool

	input  *node
	output *node

	width, height int
	x, y          int

	totalFrames   uint64
	droppedFrames int64
	last          FrameInfo

	res       resourceSet
	texture   gpucore.TextureID
	fb        gpucore.FramebufferID
	texCoords gpucore.BufferID
	positions gpucore.BufferID
	vs, fs    gpucore.ShaderID
	program   gpucore.ProgramID

	canvas     *raster.Canvas
	ownsCanvas bool
}

// newNode allocates the node resources described by opts. The caller must
// hold the context lock and must call init with the outer node value.
//
// An allocation failure releases whatever was already acquired and
// destroys the context with a "<name> init failed" reason; the returned
// node is then closed.
func newNode(ctx *Context, opts NodeOptions) *node {
	n := &node{
		ctx:            ctx,
		id:             uuid.New().String(),
		name:           opts.Name,
		matchInputSize: opts.MatchInputSize,
		width:          opts.Width,
		height:         opts.Height,
	}
	n.fsm = newMachine("node "+opts.Name, nodeTransitions)
	n.log = ctx.log.With("node", opts.Name)
	if n.width == 0 {
		n.width = ctx.width
	}
	if n.height == 0 {
		n.height = ctx.height
	}
	n.last = FrameInfo{Timestamp: ctx.now()}

	if err := n.allocate(opts); err != nil {
		n.res.releaseAll()
		n.fsm.state = StateClosed
		ctx.destroyLocked(n.name+" init failed", err)
		return n
	}
	ctx.attach(n)
	return n
}

// init wires the outer node value used for dispatch.
func (n *node) init(self kind, pub Node) {
	n.self, n.pub = self, pub
}

func (n *node) allocate(opts NodeOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	switch n.ctx.mode {
	case ModeRaster:
		if opts.CreateRaster {
			cv, err := raster.New(n.width, n.height, true)
			if err != nil {
				return err
			}
			n.canvas, n.ownsCanvas = cv, true
			n.res.add(func() {
				cv.Clear()
				n.canvas = nil
			})
		}
		return nil
	case ModeGPU:
		return n.allocateGPU(opts)
	default:
		return nil
	}
}

func (n *node) allocateGPU(opts NodeOptions) error {
	dev := n.ctx.gpu
	if opts.CreateTexture {
		tex, err := dev.CreateTexture()
		if err != nil {
			return fmt.Errorf("texture: %w", err)
		}
		n.texture = tex
		n.res.add(func() {
			dev.DeleteTexture(tex)
			n.texture = gpucore.InvalidID
		})
	}
	tc, err := dev.CreateBuffer(quadTexCoords)
	if err != nil {
		return fmt.Errorf("texcoord buffer: %w", err)
	}
	n.texCoords = tc
	n.res.add(func() {
		dev.DeleteBuffer(tc)
		n.texCoords = gpucore.InvalidID
	})
	pos, err := dev.CreateBuffer(quadPositions)
	if err != nil {
		return fmt.Errorf("position buffer: %w", err)
	}
	n.positions = pos
	n.res.add(func() {
		dev.DeleteBuffer(pos)
		n.positions = gpucore.InvalidID
	})

	if opts.UseFramebuffer {
		if err := dev.AllocTexture(n.texture, n.width, n.height, nil); err != nil {
			return fmt.Errorf("framebuffer storage: %w", err)
		}
		fb, err := dev.CreateFramebuffer(n.texture)
		if err != nil {
			return fmt.Errorf("framebuffer: %w", err)
		}
		n.fb = fb
		n.res.add(func() {
			dev.DeleteFramebuffer(fb)
			n.fb = gpucore.InvalidID
		})
	}

	if opts.UseDefaultProgram {
		n.program = n.ctx.program
	}
	if opts.customProgram() {
		vs, err := dev.CreateShader(gpucore.StageVertex, opts.VertexShader)
		if err != nil {
			return fmt.Errorf("vertex shader: %w", err)
		}
		n.vs = vs
		n.res.add(func() {
			dev.DeleteShader(vs)
			n.vs = gpucore.InvalidID
		})
		fs, err := dev.CreateShader(gpucore.StageFragment, opts.FragmentShader)
		if err != nil {
			return fmt.Errorf("fragment shader: %w", err)
		}
		n.fs = fs
		n.res.add(func() {
			dev.DeleteShader(fs)
			n.fs = gpucore.InvalidID
		})
		prog, err := dev.CreateProgram(vs, fs)
		if err != nil {
			return fmt.Errorf("program: %w", err)
		}
		n.program = prog
		n.res.add(func() {
			dev.DeleteProgram(prog)
			n.program = gpucore.InvalidID
		})
	}
	return nil
}

// setTexCoords replaces the texture-coordinate buffer content. A failure
// destroys the context.
func (n *node) setTexCoords(data []float32) {
	if n.ctx.mode != ModeGPU || n.texCoords == gpucore.InvalidID {
		return
	}
	if err := n.ctx.gpu.BufferData(n.texCoords, data); err != nil {
		n.ctx.destroyLocked(n.name+" set texcoords failed", err)
	}
}

func (n *node) base() *node { return n }

// ID returns the unique node identifier.
func (n *node) ID() string { return n.id }

// Name returns the node name.
func (n *node) Name() string { return n.name }

// Context returns the owning context.
func (n *node) Context() *Context { return n.ctx }

// State returns the lifecycle state.
func (n *node) State() State {
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.fsm.state
}

// Width returns the node width.
func (n *node) Width() int {
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.width
}

// Height returns the node height.
func (n *node) Height() int {
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.height
}

// Position returns the node position used as mix layout default.
func (n *node) Position() (x, y int) {
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.x, n.y
}

// SetPosition sets the node position.
func (n *node) SetPosition(x, y int) {
	n.ctx.lock()
	defer n.ctx.unlock()
	n.x, n.y = x, y
}

// TotalFrames returns the number of frames produced.
func (n *node) TotalFrames() uint64 {
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.totalFrames
}

// DroppedFrames returns the producer frames this node never rendered.
func (n *node) DroppedFrames() int64 {
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.droppedFrames
}

// Input returns the upstream node, or nil.
func (n *node) Input() Node {
	n.ctx.lock()
	defer n.ctx.unlock()
	if n.input == nil {
		return nil
	}
	return n.input.pub
}

// Output returns the downstream node, or nil.
func (n *node) Output() Node {
	n.ctx.lock()
	defer n.ctx.unlock()
	if n.output == nil {
		return nil
	}
	return n.output.pub
}

// Connect makes target the output of n. It is valid only while n is
// uninitialized. Mix targets need ConnectMix.
func (n *node) Connect(target Node) error {
	if target == nil {
		return fmt.Errorf("vgraph: connect %s: nil target", n.name)
	}
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.connectLocked(target.base(), nil)
}

// ConnectMix inserts n into mix at layout.ZIndex.
func (n *node) ConnectMix(mix *MixNode, layout Layout) error {
	if mix == nil {
		return fmt.Errorf("vgraph: connect %s: nil mix", n.name)
	}
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.connectLocked(mix.node, &layout)
}

func (n *node) connectLocked(target *node, layout *Layout) error {
	if err := n.fsm.check(opConnect); err != nil {
		return err
	}
	if target.ctx != n.ctx {
		return ErrForeignNode
	}
	if target == n {
		return fmt.Errorf("vgraph: connect %s: node cannot feed itself", n.name)
	}
	if target.fsm.state == StateClosed {
		return fmt.Errorf("vgraph: connect %s to %s: %w", n.name, target.name, ErrNodeClosed)
	}
	if err := target.self.addInput(n, layout); err != nil {
		return err
	}
	n.output = target
	_ = n.fsm.fire(opConnect)
	if h, ok := n.self.(interface{ connected() }); ok {
		h.connected()
	}
	return nil
}

// addInput is the default single-input behaviour.
func (n *node) addInput(src *node, _ *Layout) error {
	if n.input != nil && n.input != src {
		return fmt.Errorf("vgraph: connect %s to %s: %w", src.name, n.name, ErrInputOccupied)
	}
	n.input = src
	if n.matchInputSize && src.width != 0 && src.height != 0 {
		n.self.resize(src.width, src.height)
	}
	return nil
}

func (n *node) removeInput(src *node) {
	if n.input == src {
		n.input = nil
	}
}

// Disconnect detaches n from its output. It is a no-op unless n is
// connected.
func (n *node) Disconnect() {
	n.ctx.lock()
	defer n.ctx.unlock()
	n.disconnectLocked()
}

func (n *node) disconnectLocked() {
	if n.fsm.check(opDisconnect) != nil {
		return
	}
	if n.output != nil {
		n.output.self.removeInput(n)
		n.output = nil
	}
	_ = n.fsm.fire(opDisconnect)
}

// Close detaches n from both neighbours, disconnects its input, and
// releases every resource n owns. The input is not closed.
func (n *node) Close() {
	n.ctx.lock()
	defer n.ctx.unlock()
	n.closeLocked()
}

func (n *node) closeLocked() {
	if n.fsm.check(opClose) != nil {
		return
	}
	if n.output != nil {
		n.output.self.removeInput(n)
		n.output = nil
	}
	if n.input != nil {
		n.input.disconnectLocked()
	}
	_ = n.fsm.fire(opClose)
	n.res.releaseAll()
	n.self.release()
	n.ctx.detach(n)
	n.log.Debug("vgraph: node closed", "frames", n.totalFrames)
}

// release is the per-kind close hook.
func (n *node) release() {}

// RequestFrame pulls one frame through the graph.
func (n *node) RequestFrame(seq uint64) bool {
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.requestFrameLocked(seq)
}

func (n *node) requestFrameLocked(seq uint64) bool {
	if n.fsm.state == StateClosed {
		return false
	}
	var ok bool
	switch n.ctx.mode {
	case ModeGPU:
		ok = n.self.render(seq)
	case ModeRaster:
		ok = n.self.render2d(seq)
	}
	if !ok {
		return false
	}
	n.totalFrames++
	return true
}

// render is the default GPU pass: pull the input, then draw its texture
// into this node's target.
func (n *node) render(seq uint64) bool {
	if n.input == nil || !n.input.requestFrameLocked(seq) {
		return false
	}
	return n.draw(n.input.texture, n.positions)
}

// draw issues one quad draw into n's framebuffer (or the surface).
func (n *node) draw(tex gpucore.TextureID, positions gpucore.BufferID) bool {
	err := n.ctx.gpu.Draw(gpucore.DrawCommand{
		Program:   n.program,
		Target:    n.fb,
		Texture:   tex,
		Positions: positions,
		TexCoords: n.texCoords,
	})
	if err != nil {
		n.log.Debug("vgraph: draw failed", "err", err)
		return false
	}
	return true
}

// render2d is the default raster pass: pull the input, then blit its image
// over the whole node.
func (n *node) render2d(seq uint64) bool {
	if n.input == nil || !n.input.requestFrameLocked(seq) {
		return false
	}
	return n.draw2d(n.input.self.rasterImage(), 0, 0, n.width, n.height)
}

func (n *node) draw2d(img image.Image, x, y, w, h int) bool {
	if n.canvas == nil || img == nil {
		return false
	}
	n.canvas.DrawImage(img, float64(x), float64(y), float64(w), float64(h))
	return true
}

func (n *node) rasterImage() image.Image {
	if n.canvas == nil {
		return nil
	}
	return n.canvas.Image()
}

// Resize sets the node size. It is a no-op when the size is unchanged.
func (n *node) Resize(width, height int) {
	n.ctx.lock()
	defer n.ctx.unlock()
	if n.fsm.state == StateClosed {
		return
	}
	n.self.resize(width, height)
}

// resize updates the size, the raster sub-surface and framebuffer
// storage, then resizes a size-matching output.
func (n *node) resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if n.width == width && n.height == height {
		return
	}
	n.width, n.height = width, height
	if n.canvas != nil && n.ownsCanvas {
		if err := n.canvas.Resize(width, height); err != nil {
			n.ctx.destroyLocked(n.name+" resize failed", err)
			return
		}
	}
	if n.texture != gpucore.InvalidID && n.fb != gpucore.InvalidID {
		if err := n.ctx.gpu.AllocTexture(n.texture, width, height, nil); err != nil {
			n.ctx.destroyLocked(n.name+" resize failed", err)
			return
		}
	}
	if n.output != nil && n.output.matchInputSize {
		n.output.self.resize(width, height)
	}
}

// Info returns a diagnostic snapshot.
func (n *node) Info() FrameInfo {
	n.ctx.lock()
	defer n.ctx.unlock()
	return n.infoLocked()
}

func (n *node) infoLocked() FrameInfo {
	now := n.ctx.now()
	fi := FrameInfo{
		Name:          n.name,
		Timestamp:     now,
		TotalFrames:   n.totalFrames,
		DroppedFrames: n.droppedFrames,
		X:             n.x,
		Y:             n.y,
		Width:         n.width,
		Height:        n.height,
		FPS:           fps(n.last.TotalFrames, n.totalFrames, n.last.Timestamp, now),
	}
	n.last = fi
	fi.Parents = n.self.parents()
	return fi
}

func (n *node) parents() []FrameInfo {
	if n.input == nil {
		return nil
	}
	return []FrameInfo{n.input.infoLocked()}
}
