// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpucanvas shows the output of a video graph in a gogpu window.
//
// A Canvas is a media.Track: pass it to vgraph.NewTrackDestination and
// every composed frame is kept as the canvas image. The window's draw
// callback then uploads the latest frame and draws it:
//
//	canvas, _ := gpucanvas.New(app.GPUContextProvider())
//	dst := vgraph.NewTrackDestination(ctx, canvas)
//	_ = src.Connect(dst)
//
//	app.OnDraw(func(dc *gogpu.Context) {
//	    _ = canvas.RenderTo(dc.AsTextureDrawer())
//	})
//
// # Thread Safety
//
// Push is called from the graph clock while RenderTo runs on the window
// thread, so Canvas is safe for concurrent use.
//
// # Integration Without Circular Imports
//
// The package only depends on gpucontext interfaces:
//
//   - gpucontext.DeviceProvider for device access
//   - gpucontext.TextureDrawer and gpucontext.TextureCreator for drawing
package gpucanvas
