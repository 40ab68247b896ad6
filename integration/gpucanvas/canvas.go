// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucanvas

import (
	"errors"
	"image"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/vgraph/media"
)

// Common errors returned by Canvas operations.
var (
	// ErrCanvasClosed is returned when operations are attempted on a closed canvas.
	ErrCanvasClosed = errors.New("gpucanvas: canvas is closed")

	// ErrNilProvider is returned when a nil DeviceProvider is passed.
	ErrNilProvider = errors.New("gpucanvas: nil DeviceProvider")

	// ErrNoFrame is returned by RenderTo before the first frame arrives.
	ErrNoFrame = errors.New("gpucanvas: no frame")
)

// textureDestroyer matches the gogpu.Texture.Destroy signature.
type textureDestroyer interface {
	Destroy()
}

// Canvas is a media.Track presenting frames in a gogpu window.
type Canvas struct {
	mu sync.Mutex

	provider  gpucontext.DeviceProvider
	frame     *image.RGBA
	frames    uint64
	dirty     bool
	texture   gpucontext.Texture
	frameRate float64
	capturing bool
	muted     bool
	closed    bool

	nextID    int
	listeners map[int]func()
}

var _ media.Track = (*Canvas)(nil)

// New creates a canvas bound to the window device of provider.
// The provider should come from gogpu.App.GPUContextProvider().
func New(provider gpucontext.DeviceProvider) (*Canvas, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	return &Canvas{
		provider:  provider,
		listeners: make(map[int]func()),
	}, nil
}

// Capture implements media.Track.
func (c *Canvas) Capture(frameRate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return media.ErrTrackStopped
	}
	c.frameRate = frameRate
	c.capturing = true
	return nil
}

// Push implements media.Track. The frame is kept until the next RenderTo.
// Frames pushed while muted, stopped or before Capture are dropped.
func (c *Canvas) Push(img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing || c.closed || c.muted || img == nil {
		return
	}
	c.frame = img
	c.frames++
	c.dirty = true
}

// OnMute implements media.Track.
func (c *Canvas) OnMute(fn func()) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Mute stops accepting frames and notifies mute listeners, e.g. when the
// window is minimized.
func (c *Canvas) Mute() {
	c.mu.Lock()
	if c.muted || c.closed {
		c.mu.Unlock()
		return
	}
	c.muted = true
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Stop implements media.Track. It releases the window textures.
func (c *Canvas) Stop() {
	_ = c.Close()
}

// Close releases all resources associated with the Canvas.
// Close is idempotent.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.capturing = false
	destroyTexture(c.texture)
	c.texture = nil
	c.frame = nil
	c.listeners = make(map[int]func())
	c.provider = nil
	return nil
}

// FrameRate returns the rate passed to Capture.
func (c *Canvas) FrameRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameRate
}

// Frames returns the number of accepted frames.
func (c *Canvas) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Size returns the size of the last frame.
func (c *Canvas) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return 0, 0
	}
	b := c.frame.Bounds()
	return b.Dx(), b.Dy()
}

// IsDirty reports whether a frame is waiting for upload.
func (c *Canvas) IsDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Texture returns the current window texture, or nil.
func (c *Canvas) Texture() gpucontext.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.texture
}

// Provider returns the DeviceProvider associated with this canvas.
// Returns nil if the canvas is closed.
func (c *Canvas) Provider() gpucontext.DeviceProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

func destroyTexture(tex gpucontext.Texture) {
	if d, ok := tex.(textureDestroyer); ok {
		d.Destroy()
	}
}
