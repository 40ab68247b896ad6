// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucore

import (
	"errors"
	"image"
)

// Errors reported by Device implementations.
var (
	// ErrDeviceLost is latched when the backend loses its device.
	ErrDeviceLost = errors.New("gpucore: device lost")

	// ErrUnknownResource is returned for IDs the device never issued
	// or already deleted.
	ErrUnknownResource = errors.New("gpucore: unknown resource")

	// ErrDestroyed is returned by every call after Destroy.
	ErrDestroyed = errors.New("gpucore: device destroyed")
)

// Device is the GPU capability used by the video graph.
//
// Delete methods are no-ops for InvalidID and unknown IDs.
type Device interface {
	// Name identifies the backend (e.g. "vulkan", "noop").
	Name() string

	// CreateTexture allocates a texture handle without storage.
	CreateTexture() (TextureID, error)
	// AllocTexture (re)allocates storage of the given size. pix may be nil
	// for uninitialized storage; otherwise it holds width*height*4 RGBA bytes.
	AllocTexture(tex TextureID, width, height int, pix []byte) error
	// WriteTexture uploads pix into the existing storage at the origin
	// without reallocating. The region must fit the texture.
	WriteTexture(tex TextureID, width, height int, pix []byte) error
	DeleteTexture(tex TextureID)

	// CreateBuffer allocates a vertex buffer holding data.
	CreateBuffer(data []float32) (BufferID, error)
	// BufferData replaces the buffer content in place.
	BufferData(buf BufferID, data []float32) error
	DeleteBuffer(buf BufferID)

	// CreateFramebuffer makes tex a render target.
	CreateFramebuffer(color TextureID) (FramebufferID, error)
	DeleteFramebuffer(fb FramebufferID)

	// DefaultShaderSource returns the source of the textured-quad shader
	// stage in the backend's shading language.
	DefaultShaderSource(stage ShaderStage) string
	// CreateShader compiles one stage.
	CreateShader(stage ShaderStage, source string) (ShaderID, error)
	DeleteShader(sh ShaderID)
	// CreateProgram links a vertex and fragment shader.
	CreateProgram(vs, fs ShaderID) (ProgramID, error)
	DeleteProgram(p ProgramID)

	// ResizeSurface resizes the presentation surface and viewport.
	ResizeSurface(width, height int) error
	// Clear clears target to transparent black.
	Clear(target FramebufferID) error
	// Draw issues a triangle strip over QuadVertices vertices.
	Draw(cmd DrawCommand) error
	// ReadPixels reads back the content of target.
	ReadPixels(target FramebufferID) (*image.RGBA, error)

	// Err returns and clears the first latched error, or nil.
	Err() error
	// OnLost registers fn to be called once if the device is lost.
	OnLost(fn func())
	// Destroy releases every resource. It is safe to call twice.
	Destroy()
}
