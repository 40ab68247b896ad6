// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// MaxDimension is the largest width or height a Canvas accepts.
const MaxDimension = 16384

// ErrInvalidDimensions is returned for negative or oversized canvases.
var ErrInvalidDimensions = errors.New("raster: invalid dimensions")

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// Canvas is a software 2D drawing surface backed by an *image.RGBA.
//
// Drawing operations honour the current transform, which starts as the
// identity and is modified by Scale and Translate. PutImageData ignores
// the transform. A Canvas is not safe for concurrent use.
type Canvas struct {
	img    *image.RGBA
	alpha  bool
	xform  f64.Aff3
	interp draw.Interpolator
}

// New creates a canvas of the given size. When alpha is false the canvas is
// opaque: clears produce opaque black instead of transparent pixels.
func New(width, height int, alpha bool) (*Canvas, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	c := &Canvas{
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		alpha:  alpha,
		xform:  identity,
		interp: draw.BiLinear,
	}
	c.fill(c.img.Bounds())
	return c, nil
}

func checkSize(width, height int) error {
	if width < 0 || height < 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}

// Width returns the canvas width.
func (c *Canvas) Width() int { return c.img.Rect.Dx() }

// Height returns the canvas height.
func (c *Canvas) Height() int { return c.img.Rect.Dy() }

// SetInterpolator selects the scaler used by DrawImage.
// The default is draw.BiLinear.
func (c *Canvas) SetInterpolator(i draw.Interpolator) {
	if i != nil {
		c.interp = i
	}
}

// Resize reallocates the backing image. Content is discarded; the current
// transform is kept. Resizing to the current size is a no-op.
func (c *Canvas) Resize(width, height int) error {
	if width == c.Width() && height == c.Height() {
		return nil
	}
	if err := checkSize(width, height); err != nil {
		return err
	}
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	c.fill(c.img.Bounds())
	return nil
}

// Clear drops the backing storage, leaving a zero-sized canvas.
func (c *Canvas) Clear() {
	c.img = image.NewRGBA(image.Rectangle{})
	c.xform = identity
}

// Image returns the backing image. It is valid until the next Resize.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Snapshot returns a copy of the canvas content.
func (c *Canvas) Snapshot() *image.RGBA {
	out := image.NewRGBA(c.img.Rect)
	copy(out.Pix, c.img.Pix)
	return out
}

// Transform returns the current transform.
func (c *Canvas) Transform() f64.Aff3 { return c.xform }

// ResetTransform restores the identity transform.
func (c *Canvas) ResetTransform() { c.xform = identity }

// Scale post-multiplies the transform by a scale.
func (c *Canvas) Scale(sx, sy float64) {
	c.xform = mul(c.xform, f64.Aff3{sx, 0, 0, 0, sy, 0})
}

// Translate post-multiplies the transform by a translation.
func (c *Canvas) Translate(tx, ty float64) {
	c.xform = mul(c.xform, f64.Aff3{1, 0, tx, 0, 1, ty})
}

// DrawImage draws src scaled into the rectangle (x, y, w, h) in user space,
// compositing with source-over.
func (c *Canvas) DrawImage(src image.Image, x, y, w, h float64) {
	if src == nil || w == 0 || h == 0 {
		return
	}
	sr := src.Bounds()
	if sr.Empty() {
		return
	}
	place := f64.Aff3{
		w / float64(sr.Dx()), 0, x - float64(sr.Min.X)*w/float64(sr.Dx()),
		0, h / float64(sr.Dy()), y - float64(sr.Min.Y)*h/float64(sr.Dy()),
	}
	m := mul(c.xform, place)
	if isTranslation(m) {
		dp := image.Pt(int(m[2]), int(m[5]))
		draw.Draw(c.img, sr.Sub(sr.Min).Add(dp), src, sr.Min, draw.Over)
		return
	}
	c.interp.Transform(c.img, m, src, sr, draw.Over, nil)
}

// PutImageData copies src at (x, y) in device space, replacing pixels.
func (c *Canvas) PutImageData(src image.Image, x, y int) {
	if src == nil {
		return
	}
	sr := src.Bounds()
	draw.Draw(c.img, sr.Sub(sr.Min).Add(image.Pt(x, y)), src, sr.Min, draw.Src)
}

// ClearRect clears the device-space bounding box of the user-space
// rectangle (x, y, w, h).
func (c *Canvas) ClearRect(x, y, w, h float64) {
	x0, y0 := apply(c.xform, x, y)
	x1, y1 := apply(c.xform, x+w, y+h)
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	c.fill(image.Rect(int(x0), int(y0), int(x1+0.5), int(y1+0.5)))
}

func (c *Canvas) fill(r image.Rectangle) {
	var bg color.RGBA
	if !c.alpha {
		bg.A = 0xff
	}
	draw.Draw(c.img, r.Intersect(c.img.Rect), image.NewUniform(bg), image.Point{}, draw.Src)
}

// mul returns m*n, applying n first.
func mul(m, n f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		m[0]*n[0] + m[1]*n[3], m[0]*n[1] + m[1]*n[4], m[0]*n[2] + m[1]*n[5] + m[2],
		m[3]*n[0] + m[4]*n[3], m[3]*n[1] + m[4]*n[4], m[3]*n[2] + m[4]*n[5] + m[5],
	}
}

func apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

func isTranslation(m f64.Aff3) bool {
	return m[0] == 1 && m[1] == 0 && m[3] == 0 && m[4] == 1 &&
		m[2] == float64(int(m[2])) && m[5] == float64(int(m[5]))
}
