// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/vgraph/internal/cache"
	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/wgpu/hal"
)

// Entry points every stage must declare.
const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
)

// defaultVertexSource positions the quad and forwards texture coordinates.
// y_scale is -1 for offscreen targets so row 0 of a texture lines up with
// the bottom of clip space.
const defaultVertexSource = `struct Params {
    y_scale: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
}

@group(0) @binding(0) var<uniform> params: Params;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec2<f32>, @location(1) uv: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(pos.x, pos.y * params.y_scale, 0.0, 1.0);
    out.uv = uv;
    return out;
}
`

const defaultFragmentSource = `@group(0) @binding(1) var frame_texture: texture_2d<f32>;
@group(0) @binding(2) var frame_sampler: sampler;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return textureSample(frame_texture, frame_sampler, uv);
}
`

// ShaderError reports a WGSL stage that failed to compile.
type ShaderError struct {
	Stage gpucore.ShaderStage
	Err   error
}

func (e *ShaderError) Error() string {
	return fmt.Sprintf("halgpu: %s shader: %v", e.Stage, e.Err)
}

func (e *ShaderError) Unwrap() error { return e.Err }

func entryPoint(stage gpucore.ShaderStage) string {
	if stage == gpucore.StageVertex {
		return vertexEntry
	}
	return fragmentEntry
}

// shaderKey identifies a compiled stage. Nodes with the same custom program
// share one translation.
type shaderKey struct {
	stage  gpucore.ShaderStage
	spirv  bool
	source string
}

// compiled holds successful translations only.
var compiled = cache.NewLRU[shaderKey, hal.ShaderSource](64)

// compileSource validates a WGSL stage and returns the module source for
// the HAL. When toSPIRV is set the source is also translated to SPIR-V.
func compileSource(stage gpucore.ShaderStage, source string, toSPIRV bool) (hal.ShaderSource, error) {
	key := shaderKey{stage: stage, spirv: toSPIRV, source: source}
	if src, ok := compiled.Get(key); ok {
		return src, nil
	}
	src, err := translate(stage, source, toSPIRV)
	if err != nil {
		return hal.ShaderSource{}, err
	}
	compiled.Put(key, src)
	return src, nil
}

func translate(stage gpucore.ShaderStage, source string, toSPIRV bool) (hal.ShaderSource, error) {
	if strings.TrimSpace(source) == "" {
		return hal.ShaderSource{}, &ShaderError{Stage: stage, Err: errors.New("empty source")}
	}
	if entry := entryPoint(stage); !strings.Contains(source, "fn "+entry) {
		return hal.ShaderSource{}, &ShaderError{Stage: stage, Err: fmt.Errorf("missing entry point %s", entry)}
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return hal.ShaderSource{}, &ShaderError{Stage: stage, Err: err}
	}
	mod, err := naga.Lower(ast)
	if err != nil {
		return hal.ShaderSource{}, &ShaderError{Stage: stage, Err: err}
	}
	verrs, err := naga.Validate(mod)
	if err != nil {
		return hal.ShaderSource{}, &ShaderError{Stage: stage, Err: err}
	}
	if len(verrs) > 0 {
		return hal.ShaderSource{}, &ShaderError{Stage: stage, Err: verrs[0]}
	}

	if !toSPIRV {
		return hal.ShaderSource{WGSL: source}, nil
	}
	code, err := naga.GenerateSPIRV(mod, spirv.DefaultOptions())
	if err != nil {
		return hal.ShaderSource{}, &ShaderError{Stage: stage, Err: err}
	}
	return hal.ShaderSource{SPIRV: spirvWords(code)}, nil
}

// spirvWords reinterprets little-endian SPIR-V bytes as words.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}
