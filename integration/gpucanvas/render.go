// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucanvas

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
)

// ErrInvalidRenderer is returned when the drawer has no texture creator.
var ErrInvalidRenderer = errors.New("gpucanvas: drawer has no gpucontext.TextureCreator")

// RenderTo uploads the latest frame if it changed and draws it at (0, 0).
//
//	app.OnDraw(func(dc *gogpu.Context) {
//	    canvas.RenderTo(dc.AsTextureDrawer())
//	})
func (c *Canvas) RenderTo(dc gpucontext.TextureDrawer) error {
	return c.RenderToPosition(dc, 0, 0)
}

// RenderToPosition is RenderTo with the top-left corner at (x, y).
func (c *Canvas) RenderToPosition(dc gpucontext.TextureDrawer, x, y float32) error {
	tex, err := c.flush(dc)
	if err != nil {
		return err
	}
	return dc.DrawTexture(tex, x, y)
}

// flush makes the window texture match the latest frame.
func (c *Canvas) flush(dc gpucontext.TextureDrawer) (gpucontext.Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCanvasClosed
	}
	if c.frame == nil {
		return nil, ErrNoFrame
	}
	if !c.dirty && c.texture != nil {
		return c.texture, nil
	}

	w, h := c.frame.Bounds().Dx(), c.frame.Bounds().Dy()
	pix := tightPixels(c.frame)

	if c.texture != nil && c.texture.Width() == w && c.texture.Height() == h {
		if up, ok := c.texture.(gpucontext.TextureUpdater); ok {
			if err := up.UpdateData(pix); err != nil {
				return nil, fmt.Errorf("gpucanvas: texture update failed: %w", err)
			}
			c.dirty = false
			return c.texture, nil
		}
	}

	creator := dc.TextureCreator()
	if creator == nil {
		return nil, ErrInvalidRenderer
	}
	tex, err := creator.NewTextureFromRGBA(w, h, pix)
	if err != nil {
		return nil, fmt.Errorf("gpucanvas: NewTextureFromRGBA failed: %w", err)
	}
	// Frames are premultiplied RGBA.
	if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}
	// NewTextureFromRGBA waits for the GPU, so the previous texture is no
	// longer sampled.
	destroyTexture(c.texture)
	c.texture = tex
	c.dirty = false
	return tex, nil
}

// tightPixels returns the frame pixels without row padding.
func tightPixels(img *image.RGBA) []byte {
	b := img.Bounds()
	row := b.Dx() * 4
	if img.Stride == row && b.Min == (image.Point{}) {
		return img.Pix[:row*b.Dy()]
	}
	out := make([]byte, row*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*row:], img.Pix[off:off+row])
	}
	return out
}
