package vgraph

import (
	"errors"
	"testing"

	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/vgraph/media"
)

func TestMixBoundingBox(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	mix := NewMixNode(ctx)
	a := NewSourceNode(ctx, &media.Still{Image: solid(100, 100, red)})
	b := NewSourceNode(ctx, &media.Still{Image: solid(100, 100, blue)})

	if err := a.ConnectMix(mix, Layout{X: 0, Y: 0, Width: 100, Height: 100, ZIndex: 0}); err != nil {
		t.Fatalf("ConnectMix(a) = %v", err)
	}
	if err := b.ConnectMix(mix, Layout{X: 50, Y: 50, Width: 100, Height: 100, ZIndex: 1}); err != nil {
		t.Fatalf("ConnectMix(b) = %v", err)
	}
	if mix.Width() != 150 || mix.Height() != 150 {
		t.Errorf("mix size = %dx%d, want 150x150", mix.Width(), mix.Height())
	}

	b.Disconnect()
	if mix.Width() != 100 || mix.Height() != 100 {
		t.Errorf("mix size after removal = %dx%d, want 100x100", mix.Width(), mix.Height())
	}
}

func TestMixLayoutDefaults(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	mix := NewMixNode(ctx)
	src := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	src.SetPosition(10, 20)
	src.Resize(40, 30)

	if err := src.ConnectMix(mix, Layout{ZIndex: 3}); err != nil {
		t.Fatalf("ConnectMix() = %v", err)
	}
	slots := mix.Slots()
	if len(slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(slots))
	}
	want := Rect{X: 10, Y: 20, Width: 40, Height: 30}
	if slots[0].Rect != want {
		t.Errorf("slot rect = %+v, want %+v", slots[0].Rect, want)
	}
	if mix.Width() != 50 || mix.Height() != 50 {
		t.Errorf("mix size = %dx%d, want 50x50", mix.Width(), mix.Height())
	}
}

func TestMixDuplicateZIndex(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	mix := NewMixNode(ctx)
	a := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, red)})
	b := NewSourceNode(ctx, &media.Still{Image: solid(4, 4, blue)})

	first := Layout{X: 1, Y: 2, Width: 4, Height: 4, ZIndex: 7}
	_ = a.ConnectMix(mix, first)
	err := b.ConnectMix(mix, Layout{X: 9, Y: 9, Width: 8, Height: 8, ZIndex: 7})
	if !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("duplicate zIndex = %v, want ErrSlotOccupied", err)
	}
	if b.State() != StateUninitialized {
		t.Errorf("rejected input state = %v", b.State())
	}
	slots := mix.Slots()
	if len(slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(slots))
	}
	if slots[0].Node != Node(a) {
		t.Errorf("slot node = %v, want the first input", slots[0].Node.Name())
	}
	if slots[0].Layout != first {
		t.Errorf("slot layout = %+v, want %+v", slots[0].Layout, first)
	}
	if a.Output() != Node(mix) || a.State() != StateConnected {
		t.Errorf("first input output = %v, state = %v", a.Output(), a.State())
	}
}

func TestMixDrawOrder(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	mix := NewMixNode(ctx)
	a := NewSourceNode(ctx, &media.Still{Image: solid(100, 100, red)})
	b := NewSourceNode(ctx, &media.Still{Image: solid(100, 100, blue)})

	// Insert the top slot first: paint order follows zIndex only.
	_ = b.ConnectMix(mix, Layout{X: 50, Y: 50, Width: 100, Height: 100, ZIndex: 1})
	_ = a.ConnectMix(mix, Layout{X: 0, Y: 0, Width: 100, Height: 100, ZIndex: 0})

	if !mix.RequestFrame(0) {
		t.Fatal("RequestFrame(0) = false")
	}
	var textures []gpucore.TextureID
	for _, d := range dev.DrawLog() {
		if d.Target == mix.fb {
			textures = append(textures, d.Texture)
		}
	}
	if len(textures) != 2 || textures[0] != a.texture || textures[1] != b.texture {
		t.Errorf("mix draw order = %v, want [%d %d]", textures, a.texture, b.texture)
	}
	if len(dev.Clears) == 0 || dev.Clears[len(dev.Clears)-1] != mix.fb {
		t.Errorf("mix target was not cleared: %v", dev.Clears)
	}
	if tex, _ := dev.TextureState(mix.texture); tex.Width != 150 || tex.Height != 150 {
		t.Errorf("mix framebuffer = %dx%d, want 150x150", tex.Width, tex.Height)
	}
}

func TestMixSkipsSlotsWithoutFrames(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	mix := NewMixNode(ctx)
	a := NewSourceNode(ctx, &media.Still{Image: solid(10, 10, red)})
	idle := NewSourceNode(ctx, media.NewFeed())
	_ = a.ConnectMix(mix, Layout{Width: 10, Height: 10, ZIndex: 0})
	_ = idle.ConnectMix(mix, Layout{Width: 10, Height: 10, ZIndex: 1})

	if !mix.RequestFrame(0) {
		t.Fatal("RequestFrame(0) = false")
	}
	draws := dev.DrawLog()
	if len(draws) != 1 || draws[0].Texture != a.texture {
		t.Errorf("draws = %+v, want only the producing slot", draws)
	}

	dev.ResetDraws()
	if mix.RequestFrame(1) {
		t.Error("mix produced a frame while no slot did")
	}
}

func TestMixCloseReleasesSlots(t *testing.T) {
	ctx, dev, _ := newGPUContext(t)
	before := dev.Live("buffer")
	mix := NewMixNode(ctx)
	a := NewSourceNode(ctx, &media.Still{Image: solid(10, 10, red)})
	b := NewSourceNode(ctx, &media.Still{Image: solid(10, 10, blue)})
	_ = a.ConnectMix(mix, Layout{Width: 10, Height: 10, ZIndex: 0})
	_ = b.ConnectMix(mix, Layout{X: 5, Width: 10, Height: 10, ZIndex: 1})

	mix.Close()

	if a.State() != StateUninitialized || b.State() != StateUninitialized {
		t.Errorf("input states = %v, %v, want uninitialized", a.State(), b.State())
	}
	a.Close()
	b.Close()
	if got := dev.Live("buffer"); got != before {
		t.Errorf("live buffers = %d, want %d", got, before)
	}
	if dev.DoubleDeletes != 0 {
		t.Errorf("double deletes = %d", dev.DoubleDeletes)
	}
}

func TestMixInfoParents(t *testing.T) {
	ctx, _, _ := newGPUContext(t)
	mix := NewMixNode(ctx)
	a := NewSourceNode(ctx, &media.Still{Image: solid(10, 10, red)})
	b := NewMirrorNode(ctx)
	_ = b.ConnectMix(mix, Layout{Width: 10, Height: 10, ZIndex: 2})
	_ = a.ConnectMix(mix, Layout{Width: 10, Height: 10, ZIndex: -1})

	info := mix.Info()
	if len(info.Parents) != 2 {
		t.Fatalf("parents = %d, want 2", len(info.Parents))
	}
	if info.Parents[0].Name != "imageSource" || info.Parents[1].Name != "mirror" {
		t.Errorf("parent order = %q, %q", info.Parents[0].Name, info.Parents[1].Name)
	}
}

func TestMixRaster(t *testing.T) {
	ctx, _ := newRasterContext(t)
	mix := NewMixNode(ctx)
	a := NewSourceNode(ctx, &media.Still{Image: solid(10, 10, red)})
	b := NewSourceNode(ctx, &media.Still{Image: solid(10, 10, blue)})
	_ = a.ConnectMix(mix, Layout{X: 0, Y: 0, Width: 10, Height: 10, ZIndex: 0})
	_ = b.ConnectMix(mix, Layout{X: 5, Y: 5, Width: 10, Height: 10, ZIndex: 1})

	if !mix.RequestFrame(0) {
		t.Fatal("RequestFrame(0) = false")
	}
	img := mix.canvas.Image()
	if got := img.RGBAAt(2, 2); got != red {
		t.Errorf("bottom-only pixel = %v, want red", got)
	}
	if got := img.RGBAAt(7, 7); got != blue {
		t.Errorf("overlap pixel = %v, want blue on top", got)
	}
	if got := img.RGBAAt(12, 2); got.A != 0 {
		t.Errorf("uncovered pixel = %v, want transparent", got)
	}
}
