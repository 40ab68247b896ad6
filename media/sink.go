// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package media

import (
	"errors"
	"image"
	"sync"
)

// ErrTrackStopped is returned when capturing a stopped track.
var ErrTrackStopped = errors.New("media: track stopped")

// Track is a capturable live output.
//
// OnMute callbacks are invoked from Mute, never from Push.
type Track interface {
	// Capture starts the track at the given frame rate.
	Capture(frameRate float64) error
	// Push delivers the current composed frame.
	Push(img *image.RGBA)
	// OnMute registers fn for the mute notification.
	OnMute(fn func()) (cancel func())
	// Stop ends the track. It is safe to call twice.
	Stop()
}

// FrameSink receives every produced frame with its sequence number.
type FrameSink interface {
	WriteFrame(img *image.RGBA, seq uint64)
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(img *image.RGBA, seq uint64)

// WriteFrame implements FrameSink.
func (f FrameSinkFunc) WriteFrame(img *image.RGBA, seq uint64) { f(img, seq) }

// MemoryTrack is an in-process Track that keeps the last pushed frame.
type MemoryTrack struct {
	mu        sync.Mutex
	frameRate float64
	capturing bool
	stopped   bool
	muted     bool
	last      *image.RGBA
	pushed    int
	nextID    int
	listeners map[int]func()
}

// NewMemoryTrack creates an idle track.
func NewMemoryTrack() *MemoryTrack {
	return &MemoryTrack{listeners: make(map[int]func())}
}

// Capture implements Track.
func (t *MemoryTrack) Capture(frameRate float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return ErrTrackStopped
	}
	t.frameRate = frameRate
	t.capturing = true
	return nil
}

// Push implements Track. Frames pushed while muted or stopped are dropped.
func (t *MemoryTrack) Push(img *image.RGBA) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.capturing || t.stopped || t.muted {
		return
	}
	t.last = img
	t.pushed++
}

// OnMute implements Track.
func (t *MemoryTrack) OnMute(fn func()) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Mute marks the track silent and notifies listeners.
func (t *MemoryTrack) Mute() {
	t.mu.Lock()
	if t.muted || t.stopped {
		t.mu.Unlock()
		return
	}
	t.muted = true
	fns := make([]func(), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Stop implements Track.
func (t *MemoryTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.capturing = false
	t.listeners = make(map[int]func())
	t.mu.Unlock()
}

// FrameRate returns the rate passed to Capture.
func (t *MemoryTrack) FrameRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frameRate
}

// Stopped reports whether Stop was called.
func (t *MemoryTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Last returns the last accepted frame and the number of accepted frames.
func (t *MemoryTrack) Last() (*image.RGBA, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.pushed
}
