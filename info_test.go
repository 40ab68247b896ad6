package vgraph

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/vgraph/media"
)

func TestFPS(t *testing.T) {
	t0 := time.Unix(100, 0)
	tests := []struct {
		name       string
		prevFrames uint64
		frames     uint64
		prev, now  time.Time
		want       int
	}{
		{"one second", 0, 30, t0, t0.Add(time.Second), 30},
		{"truncated", 0, 10, t0, t0.Add(3 * time.Second), 3},
		{"no elapsed time", 0, 10, t0, t0, 0},
		{"zero previous timestamp", 0, 10, time.Time{}, t0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fps(tt.prevFrames, tt.frames, tt.prev, tt.now); got != tt.want {
				t.Errorf("fps() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInfoSnapshot(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	ctx, _, _ := newGPUContext(t, WithClock(clock))

	feed := media.NewFeed()
	src := NewSourceNode(ctx, feed)
	dst := NewDestinationNode(ctx)
	_ = src.Connect(dst)

	feed.Push(solid(64, 48, red))
	dst.RequestFrame(0)
	feed.Skip(1)
	feed.Push(solid(64, 48, blue))
	dst.RequestFrame(1)
	now = now.Add(time.Second)

	got := dst.Info()
	want := FrameInfo{
		Name:        "destination",
		Timestamp:   now,
		TotalFrames: 2,
		Width:       64,
		Height:      48,
		FPS:         2,
		Parents: []FrameInfo{{
			Name:          "imageSource",
			Timestamp:     now,
			TotalFrames:   2,
			DroppedFrames: 2,
			Width:         64,
			Height:        48,
			FPS:           2,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Info() mismatch (-want +got):\n%s", diff)
	}

	now = now.Add(time.Second)
	again := dst.Info()
	if again.FPS != 0 {
		t.Errorf("FPS without new frames = %d, want 0", again.FPS)
	}
	if p, ok := again.Parent(); !ok || p.TotalFrames != 2 {
		t.Errorf("Parent() = %+v, %v", p, ok)
	}
}

func TestInfoWithoutParent(t *testing.T) {
	ctx, _ := newRasterContext(t)
	mir := NewMirrorNode(ctx)
	if _, ok := mir.Info().Parent(); ok {
		t.Error("Parent() on a node without input reported ok")
	}
}
