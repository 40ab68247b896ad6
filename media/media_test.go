// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package media

import (
	"image"
	"testing"
)

func TestStillFrame(t *testing.T) {
	s := &Still{}
	if img, meta := s.Frame(); img != nil || meta.Kind != KindStill {
		t.Errorf("empty Still = (%v, %v), want (nil, still)", img, meta)
	}
	s.Image = image.NewRGBA(image.Rect(0, 0, 320, 240))
	_, meta := s.Frame()
	if meta.Width != 320 || meta.Height != 240 {
		t.Errorf("meta = %dx%d, want 320x240", meta.Width, meta.Height)
	}
}

func TestFeedCounter(t *testing.T) {
	f := NewFeed()
	if _, meta := f.Frame(); meta.Frames != 0 || meta.Kind != KindVideo {
		t.Errorf("initial meta = %+v", meta)
	}
	f.Push(image.NewRGBA(image.Rect(0, 0, 8, 4)))
	f.Skip(2)
	_, meta := f.Frame()
	if meta.Frames != 3 {
		t.Errorf("Frames = %d, want 3", meta.Frames)
	}
	if meta.Width != 8 || meta.Height != 4 {
		t.Errorf("size = %dx%d, want 8x4", meta.Width, meta.Height)
	}
}

func TestGenerator(t *testing.T) {
	calls := 0
	g := Generator(func() image.Image {
		calls++
		return image.NewRGBA(image.Rect(0, 0, 2, 2))
	})
	g.Frame()
	_, meta := g.Frame()
	if calls != 2 || meta.Kind != KindGenerated {
		t.Errorf("calls = %d kind = %v, want 2 generated", calls, meta.Kind)
	}
}

func TestMemoryTrackMute(t *testing.T) {
	tr := NewMemoryTrack()
	if err := tr.Capture(30); err != nil {
		t.Fatal(err)
	}
	muted := 0
	cancel := tr.OnMute(func() { muted++ })
	other := tr.OnMute(func() { muted += 10 })
	other()

	tr.Push(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	tr.Mute()
	tr.Mute()
	tr.Push(image.NewRGBA(image.Rect(0, 0, 1, 1)))

	if muted != 1 {
		t.Errorf("mute callbacks = %d, want 1", muted)
	}
	if _, n := tr.Last(); n != 1 {
		t.Errorf("accepted frames = %d, want 1", n)
	}
	cancel()
}

func TestMemoryTrackStop(t *testing.T) {
	tr := NewMemoryTrack()
	tr.Stop()
	tr.Stop()
	if !tr.Stopped() {
		t.Error("Stopped() = false after Stop")
	}
	if err := tr.Capture(30); err != ErrTrackStopped {
		t.Errorf("Capture() after Stop = %v, want ErrTrackStopped", err)
	}
}
