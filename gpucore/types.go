// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpucore

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.

// TextureID is an opaque handle to a 2D RGBA texture.
type TextureID uint64

// BufferID is an opaque handle to a vertex buffer of float32 pairs.
type BufferID uint64

// FramebufferID is an opaque handle to an offscreen render target.
// InvalidID addresses the device surface.
type FramebufferID uint64

// ShaderID is an opaque handle to a compiled shader stage.
type ShaderID uint64

// ProgramID is an opaque handle to a linked vertex+fragment program.
type ProgramID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// ShaderStage identifies the pipeline stage of a shader.
type ShaderStage uint8

const (
	// StageVertex is the vertex stage.
	StageVertex ShaderStage = iota
	// StageFragment is the fragment stage.
	StageFragment
)

// String returns the stage name.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// DrawCommand describes one textured quad draw.
//
// The quad is a triangle strip of 4 vertices. Positions are in normalized
// device coordinates, texture coordinates in [0,1].
type DrawCommand struct {
	Program   ProgramID
	Target    FramebufferID
	Texture   TextureID
	Unit      int
	Positions BufferID
	TexCoords BufferID
}

// QuadVertices is the number of vertices consumed by a draw.
const QuadVertices = 4
