// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package media defines the external frame producers and sinks the video
// graph reads from and writes to, with small in-memory implementations.
package media

import (
	"image"
	"sync"
)

// Kind classifies how a producer reports new frames.
type Kind uint8

const (
	// KindStill is a fixed image. It is new only when the image or its
	// dimensions change.
	KindStill Kind = iota
	// KindVideo is a playing source with a decoded-frame counter.
	KindVideo
	// KindGenerated is redrawn by the application; every pull is new.
	KindGenerated
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStill:
		return "still"
	case KindVideo:
		return "video"
	case KindGenerated:
		return "generated"
	default:
		return "unknown"
	}
}

// FrameMeta describes the frame a producer currently exposes.
type FrameMeta struct {
	Kind   Kind
	Width  int
	Height int
	// Frames is the decoded-frame counter of a video producer.
	Frames int64
}

// Producer exposes its current frame. Frame may return a nil image when
// nothing is available yet.
type Producer interface {
	Frame() (image.Image, FrameMeta)
}

// Still is a Producer for a fixed image.
type Still struct {
	Image image.Image
}

// Frame implements Producer.
func (s *Still) Frame() (image.Image, FrameMeta) {
	if s.Image == nil {
		return nil, FrameMeta{Kind: KindStill}
	}
	b := s.Image.Bounds()
	return s.Image, FrameMeta{Kind: KindStill, Width: b.Dx(), Height: b.Dy()}
}

// Generator is a Producer calling a function on every pull.
type Generator func() image.Image

// Frame implements Producer.
func (g Generator) Frame() (image.Image, FrameMeta) {
	img := g()
	if img == nil {
		return nil, FrameMeta{Kind: KindGenerated}
	}
	b := img.Bounds()
	return img, FrameMeta{Kind: KindGenerated, Width: b.Dx(), Height: b.Dy()}
}

// Feed is a video Producer fed by Push. It is safe for concurrent use.
type Feed struct {
	mu     sync.Mutex
	img    image.Image
	frames int64
}

// NewFeed creates an empty feed.
func NewFeed() *Feed { return &Feed{} }

// Push makes img the current frame and advances the decoded-frame counter.
func (f *Feed) Push(img image.Image) {
	f.mu.Lock()
	f.img = img
	f.frames++
	f.mu.Unlock()
}

// Skip advances the counter without changing the image, as a decoder
// does when it drops a frame.
func (f *Feed) Skip(n int64) {
	f.mu.Lock()
	f.frames += n
	f.mu.Unlock()
}

// Frame implements Producer.
func (f *Feed) Frame() (image.Image, FrameMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := FrameMeta{Kind: KindVideo, Frames: f.frames}
	if f.img != nil {
		b := f.img.Bounds()
		meta.Width, meta.Height = b.Dx(), b.Dy()
	}
	return f.img, meta
}
