// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpucore defines the GPU capability the video graph renders through.
//
// A [Device] is the minimal set of operations a node needs: textures,
// vertex buffers, offscreen framebuffers, shader programs, and a single draw
// primitive (a textured 4-vertex triangle strip). Resources are referenced by
// opaque IDs ([TextureID], [BufferID], ...). Implementations keep the mapping
// between IDs and backend objects and never reuse an ID once it is deleted.
//
// The concrete implementation on top of gogpu/wgpu HAL lives in
// internal/halgpu and is registered by importing the gpu package:
//
//	import _ "github.com/gogpu/vgraph/gpu"
//
// # Errors
//
// Draw and upload calls return errors directly, but a Device also latches the
// first asynchronous failure it observes (for example a failed queue submit).
// [Device.Err] returns and clears it, in the spirit of glGetError, so the
// frame clock can check for fatal conditions once per tick.
package gpucore
