// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package halgpu implements gpucore.Device on top of the wgpu HAL.
//
// Textures are RGBA8Unorm and double as render targets, so every
// framebuffer is a view of the texture it was created from. The device
// surface is an offscreen texture of the same format; ReadPixels on
// gpucore.InvalidID reads it back top row first.
//
// Shaders are WGSL. Each stage is validated with naga when it is created,
// and a program becomes one render pipeline whose bind group holds the
// draw uniforms (binding 0), the source texture (binding 1) and a linear
// sampler (binding 2). Vertex stages use the entry point vs_main, fragment
// stages fs_main.
//
// Work is submitted per call and waited on before the call returns, so
// resources can be reused and deleted without fence tracking.
package halgpu
