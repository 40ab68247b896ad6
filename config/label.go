// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// defaultFontSize is the label size in pixels when a source sets none.
const defaultFontSize = 16

var (
	labelFontOnce sync.Once
	labelFont     *sfnt.Font
	labelFontErr  error
)

func goRegular() (*sfnt.Font, error) {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = opentype.Parse(goregular.TTF)
	})
	return labelFont, labelFontErr
}

// drawLabel draws text centered on img in Go Regular.
func drawLabel(img *image.RGBA, text string, size float64, c color.Color) error {
	if size == 0 {
		size = defaultFontSize
	}
	f, err := goRegular()
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create face: %w", err)
	}
	defer face.Close()

	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	m := face.Metrics()
	b := img.Bounds()
	advance := d.MeasureString(text)
	x := fixed.I(b.Dx())/2 - advance/2
	y := fixed.I(b.Dy())/2 + (m.Ascent-m.Descent)/2
	d.Dot = fixed.Point26_6{X: fixed.I(b.Min.X) + x, Y: fixed.I(b.Min.Y) + y}
	d.DrawString(text)
	return nil
}
