// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package raster is the software fallback surface of the video graph.
//
// A [Canvas] mirrors the small subset of a 2D drawing context the graph
// needs: draw-image with scaling, put-image-data, clear-rect and a
// scale/translate transform. Scaling and affine drawing are delegated to
// golang.org/x/image/draw.
//
// Example:
//
//	c, err := raster.New(640, 480, true)
//	if err != nil {
//	    return err
//	}
//	c.DrawImage(frame, 0, 0, 640, 480)
//	out := c.Snapshot()
package raster
