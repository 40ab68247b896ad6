package vgraph

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/vgraph/media"
)

func TestSourceToDestinationGPU(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	src := NewSourceNode(ctx, &media.Still{Image: solid(320, 240, red)})
	dst := NewDestinationNode(ctx)
	if err := src.Connect(dst); err != nil {
		t.Fatalf("Connect() = %v", err)
	}

	if !dst.RequestFrame(0) {
		t.Fatal("RequestFrame(0) = false, want true")
	}
	if dst.TotalFrames() != 1 || src.TotalFrames() != 1 {
		t.Errorf("frames = %d/%d, want 1/1", src.TotalFrames(), dst.TotalFrames())
	}
	if dst.Width() != 320 || dst.Height() != 240 {
		t.Errorf("destination size = %dx%d, want 320x240", dst.Width(), dst.Height())
	}

	tex, ok := dev.TextureState(src.texture)
	if !ok || tex.Width != 320 || tex.Height != 240 || tex.Allocs != 1 {
		t.Errorf("source texture = %+v", tex)
	}
	draws := dev.DrawLog()
	if len(draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(draws))
	}
	if d := draws[0]; d.Target != gpucore.InvalidID || d.Texture != src.texture || d.Program != ctx.program {
		t.Errorf("draw = %+v", d)
	}
	if got := dev.BufferContent(dst.texCoords); len(got) != 8 || got[1] != 1 {
		t.Errorf("destination texcoords = %v, want flipped", got)
	}

	if dst.RequestFrame(1) {
		t.Error("unchanged still produced a second frame")
	}
	if dst.TotalFrames() != 1 {
		t.Errorf("TotalFrames() = %d, want 1", dst.TotalFrames())
	}
}

func TestConnectDisconnectRestores(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	src := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	mir := NewMirrorNode(ctx)

	if err := src.Connect(mir); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if src.State() != StateConnected {
		t.Errorf("State() = %v, want connected", src.State())
	}
	if src.Output() != Node(mir) || mir.Input() != Node(src) {
		t.Error("edges not set")
	}

	src.Disconnect()
	src.Disconnect()
	if src.State() != StateUninitialized {
		t.Errorf("State() = %v, want uninitialized", src.State())
	}
	if src.Output() != nil || mir.Input() != nil {
		t.Error("edges not cleared")
	}
	if err := src.Connect(mir); err != nil {
		t.Errorf("reconnect = %v", err)
	}
}

func TestConnectErrors(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	other, _, _ := newGPUContext(t)

	a := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	b := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, blue)})
	mir := NewMirrorNode(ctx)
	foreign := NewMirrorNode(other)
	mix := NewMixNode(ctx)

	if err := a.Connect(nil); err == nil {
		t.Error("Connect(nil) should fail")
	}
	if err := a.Connect(foreign); !errors.Is(err, ErrForeignNode) {
		t.Errorf("foreign connect = %v, want ErrForeignNode", err)
	}
	if err := mir.Connect(mir); err == nil {
		t.Error("self connect should fail")
	}
	if err := a.Connect(mix); !errors.Is(err, ErrLayoutRequired) {
		t.Errorf("mix connect without layout = %v, want ErrLayoutRequired", err)
	}
	if err := a.Connect(mir); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if err := a.Connect(mir); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second connect = %v, want ErrInvalidTransition", err)
	}
	if err := b.Connect(mir); !errors.Is(err, ErrInputOccupied) {
		t.Errorf("occupied connect = %v, want ErrInputOccupied", err)
	}
	if b.State() != StateUninitialized {
		t.Errorf("failed connect changed state to %v", b.State())
	}

	foreign.Close()
	c := NewSourceNode(other, &media.Still{Image: solid(4, 4, red)})
	if err := c.Connect(foreign); !errors.Is(err, ErrNodeClosed) {
		t.Errorf("connect to closed = %v, want ErrNodeClosed", err)
	}
}

func TestRequestFrameWithoutInput(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	mir := NewMirrorNode(ctx)
	if mir.RequestFrame(0) {
		t.Error("RequestFrame without input = true")
	}
	mir.Close()
	if mir.RequestFrame(1) {
		t.Error("RequestFrame on a closed node = true")
	}
}

func TestCloseReleasesOnce(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	before := dev.Live("")

	src := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	mir := NewMirrorNode(ctx)
	if err := src.Connect(mir); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	mir.Close()
	mir.Close()
	src.Close()

	if src.State() != StateClosed || mir.State() != StateClosed {
		t.Errorf("states = %v, %v", src.State(), mir.State())
	}
	if got := dev.Live(""); got != before {
		t.Errorf("live resources = %d, want %d", got, before)
	}
	if dev.DoubleDeletes != 0 {
		t.Errorf("double deletes = %d", dev.DoubleDeletes)
	}
	if ctx.Available() != true {
		t.Error("closing nodes destroyed the context")
	}
}

func TestCloseDisconnectsInput(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	src := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	mir := NewMirrorNode(ctx)
	dst := NewDestinationNode(ctx)
	_ = src.Connect(mir)
	_ = mir.Connect(dst)

	mir.Close()

	if src.State() != StateUninitialized {
		t.Errorf("input state = %v, want uninitialized", src.State())
	}
	if src.Output() != nil {
		t.Error("input still points at the closed node")
	}
	if dst.Input() != nil {
		t.Error("output still holds the closed node")
	}
	if dst.State() != StateUninitialized {
		t.Errorf("output state = %v, want uninitialized", dst.State())
	}
}

func TestInitFailureDestroysContext(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	obs := observe(ctx)
	dev.Fail("CreateTexture", errBoom)

	src := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})

	if src.State() != StateClosed {
		t.Errorf("State() = %v, want closed", src.State())
	}
	if ctx.Available() {
		t.Error("context survived a node init failure")
	}
	if obs.reason != "imageSource init failed" || !errors.Is(obs.err, errBoom) {
		t.Errorf("observer got (%q, %v)", obs.reason, obs.err)
	}
	if got := dev.Live(""); got != 0 {
		t.Errorf("live resources = %d, want 0", got)
	}
}

func TestInitPartialFailureReleases(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	dev.Fail("CreateFramebuffer", errBoom)

	mir := NewMirrorNode(ctx)

	if mir.State() != StateClosed {
		t.Errorf("State() = %v, want closed", mir.State())
	}
	if got := dev.Live("texture") + dev.Live("buffer"); got != 0 {
		t.Errorf("leaked %d resources", got)
	}
	if dev.DoubleDeletes != 0 {
		t.Errorf("double deletes = %d", dev.DoubleDeletes)
	}
}

func TestNodeOnUnavailableContext(t *testing.T) {
	ctx, _ := newRasterContext(t)
	ctx.Destroy("done", nil)

	src := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	mir := NewMirrorNode(ctx)
	if err := src.Connect(mir); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if src.RequestFrame(0) || mir.RequestFrame(0) {
		t.Error("unavailable context produced a frame")
	}
}

func TestPassNode(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	opts := DefaultNodeOptions()
	opts.Name = "sepia"
	opts.UseDefaultProgram = false
	opts.UseFramebuffer = true
	opts.VertexShader = "vs"
	opts.FragmentShader = "fs"

	src := NewSourceNode(ctx, &media.Still{Image: solid(16, 8, red)})
	pass := NewPassNode(ctx, opts)
	if pass.Name() != "sepia" {
		t.Errorf("Name() = %q", pass.Name())
	}
	if pass.program == ctx.program || pass.program == gpucore.InvalidID {
		t.Fatalf("pass program = %d, want its own", pass.program)
	}
	_ = src.Connect(pass)

	if !pass.RequestFrame(0) {
		t.Fatal("RequestFrame(0) = false")
	}
	draws := dev.DrawLog()
	if len(draws) != 1 || draws[0].Program != pass.program || draws[0].Target != pass.fb {
		t.Errorf("draws = %+v", draws)
	}
	if tex, _ := dev.TextureState(pass.texture); tex.Width != 16 || tex.Height != 8 {
		t.Errorf("pass framebuffer = %dx%d, want 16x8", tex.Width, tex.Height)
	}

	programs := dev.Live("program")
	pass.Close()
	if got := dev.Live("program"); got != programs-1 {
		t.Errorf("live programs after close = %d, want %d", got, programs-1)
	}
}

func TestInvalidOptionsDestroyContext(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	obs := observe(ctx)
	opts := DefaultNodeOptions()
	opts.VertexShader = "vs only"

	p := NewPassNode(ctx, opts)

	if p.State() != StateClosed {
		t.Errorf("State() = %v, want closed", p.State())
	}
	if !strings.HasSuffix(obs.reason, "init failed") || !errors.Is(obs.err, ErrInvalidOptions) {
		t.Errorf("observer got (%q, %v)", obs.reason, obs.err)
	}
}

func TestNodeOptionsValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*NodeOptions)
		valid bool
	}{
		{"defaults", func(*NodeOptions) {}, true},
		{"negative width", func(o *NodeOptions) { o.Width = -1 }, false},
		{"fragment only", func(o *NodeOptions) { o.FragmentShader = "fs" }, false},
		{"both shaders", func(o *NodeOptions) { o.VertexShader, o.FragmentShader = "vs", "fs" }, true},
		{"framebuffer without texture", func(o *NodeOptions) {
			o.UseFramebuffer = true
			o.CreateTexture = false
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultNodeOptions()
			tt.edit(&o)
			err := o.Validate()
			if (err == nil) != tt.valid {
				t.Errorf("Validate() = %v, valid %v", err, tt.valid)
			}
			if err != nil && !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Validate() = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestResizePropagates(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	src := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	mir := NewMirrorNode(ctx)
	pass := NewPassNode(ctx, DefaultNodeOptions())
	_ = src.Connect(mir)
	_ = mir.Connect(pass)

	src.Resize(64, 32)

	if mir.Width() != 64 || pass.Height() != 32 {
		t.Errorf("downstream sizes = %dx%d, %dx%d", mir.Width(), mir.Height(), pass.Width(), pass.Height())
	}
	if tex, _ := dev.TextureState(mir.texture); tex.Width != 64 || tex.Height != 32 {
		t.Errorf("mirror framebuffer = %dx%d, want 64x32", tex.Width, tex.Height)
	}

	src.Resize(-5, 10)
	if src.Width() != 0 || src.Height() != 10 {
		t.Errorf("clamped size = %dx%d, want 0x10", src.Width(), src.Height())
	}
}

func TestResizeStopsAtFixedSizeNode(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	opts := DefaultNodeOptions()
	opts.MatchInputSize = false
	opts.Width, opts.Height = 10, 10
	src := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	fixed := NewPassNode(ctx, opts)
	_ = src.Connect(fixed)

	src.Resize(64, 64)
	if fixed.Width() != 10 {
		t.Errorf("fixed node width = %d, want 10", fixed.Width())
	}
}

func TestMirrorTexCoords(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	mir := NewMirrorNode(ctx)
	if got := dev.BufferContent(mir.texCoords); len(got) != 8 || got[0] != 1 {
		t.Errorf("mirror texcoords = %v, want mirrored", got)
	}
}

func TestMirrorRaster(t *testing.T) {
	ctx, clock := newRasterContext(t)
	img := solid(8, 2, red)
	for y := 0; y < 2; y++ {
		for x := 4; x < 8; x++ {
			img.SetRGBA(x, y, blue)
		}
	}
	src := NewSourceNode(ctx, &media.Still{Image: img})
	mir := NewMirrorNode(ctx)
	dst := NewDestinationNode(ctx)
	_ = src.Connect(mir)
	_ = mir.Connect(dst)
	clock.Flush()

	if !dst.RequestFrame(0) {
		t.Fatal("RequestFrame(0) = false")
	}
	snap, err := ctx.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() = %v", err)
	}
	if left := snap.RGBAAt(0, 0); left.B <= left.R {
		t.Errorf("left pixel = %v, want blue", left)
	}
	if right := snap.RGBAAt(7, 0); right.R <= right.B {
		t.Errorf("right pixel = %v, want red", right)
	}
}

func TestNodeIdentity(t *testing.T) {
	ctx, _ := newRasterContext(t)
	a := NewMirrorNode(ctx)
	b := NewMirrorNode(ctx)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("IDs = %q, %q", a.ID(), b.ID())
	}
	if a.Context() != ctx {
		t.Error("Context() mismatch")
	}
	a.SetPosition(3, 4)
	if x, y := a.Position(); x != 3 || y != 4 {
		t.Errorf("Position() = %d,%d", x, y)
	}
}
