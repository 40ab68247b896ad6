// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func openNoop(t *testing.T, w, h int) *Device {
	t.Helper()
	d, err := Open(noop.API{}, Options{Name: "noop", Width: w, Height: h})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

// quad creates the default program and a full-target quad.
func quad(t *testing.T, d *Device) (gpucore.ProgramID, gpucore.BufferID, gpucore.BufferID) {
	t.Helper()
	vs, err := d.CreateShader(gpucore.StageVertex, d.DefaultShaderSource(gpucore.StageVertex))
	if err != nil {
		t.Fatalf("CreateShader(vertex): %v", err)
	}
	fs, err := d.CreateShader(gpucore.StageFragment, d.DefaultShaderSource(gpucore.StageFragment))
	if err != nil {
		t.Fatalf("CreateShader(fragment): %v", err)
	}
	prog, err := d.CreateProgram(vs, fs)
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	pos, err := d.CreateBuffer([]float32{-1, -1, 1, -1, -1, 1, 1, 1})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	uv, err := d.CreateBuffer([]float32{0, 0, 1, 0, 0, 1, 1, 1})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	return prog, pos, uv
}

func TestOpen(t *testing.T) {
	d := openNoop(t, 64, 48)
	if d.Name() != "noop" {
		t.Errorf("Name() = %q, want %q", d.Name(), "noop")
	}
	w, h := d.SurfaceSize()
	if w != 64 || h != 48 {
		t.Errorf("SurfaceSize() = %dx%d, want 64x48", w, h)
	}
	if err := d.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestOpenInvalidSize(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 10},
		{"zero height", 10, 0},
		{"negative", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(noop.API{}, Options{Width: tt.w, Height: tt.h}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDefaultName(t *testing.T) {
	d, err := Open(noop.API{}, Options{Width: 1, Height: 1})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Destroy()
	if d.Name() != "hal" {
		t.Errorf("Name() = %q, want %q", d.Name(), "hal")
	}
}

func TestTextureLifecycle(t *testing.T) {
	d := openNoop(t, 8, 8)

	tex, err := d.CreateTexture()
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if tex == gpucore.InvalidID {
		t.Fatal("CreateTexture returned InvalidID")
	}
	if err := d.WriteTexture(tex, 1, 1, make([]byte, 4)); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("WriteTexture before alloc = %v, want ErrUnknownResource", err)
	}
	if err := d.AllocTexture(tex, 4, 2, make([]byte, 4*2*4)); err != nil {
		t.Fatalf("AllocTexture: %v", err)
	}
	if err := d.AllocTexture(tex, 4, 2, make([]byte, 3)); err == nil {
		t.Error("AllocTexture with short data: expected error")
	}
	if err := d.WriteTexture(tex, 4, 2, make([]byte, 4*2*4)); err != nil {
		t.Errorf("WriteTexture: %v", err)
	}
	if err := d.WriteTexture(tex, 5, 2, make([]byte, 5*2*4)); err == nil {
		t.Error("WriteTexture larger than storage: expected error")
	}
	if err := d.AllocTexture(tex, 0, 0, nil); err != nil {
		t.Errorf("AllocTexture(0x0): %v", err)
	}

	d.DeleteTexture(tex)
	d.DeleteTexture(tex)
	d.DeleteTexture(gpucore.InvalidID)
	if err := d.AllocTexture(tex, 1, 1, nil); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("AllocTexture after delete = %v, want ErrUnknownResource", err)
	}
}

func TestBufferData(t *testing.T) {
	d := openNoop(t, 8, 8)

	buf, err := d.CreateBuffer([]float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := d.BufferData(buf, []float32{4, 3, 2, 1}); err != nil {
		t.Errorf("BufferData: %v", err)
	}
	if err := d.BufferData(buf, make([]float32, 5)); err == nil {
		t.Error("BufferData larger than buffer: expected error")
	}
	d.DeleteBuffer(buf)
	if err := d.BufferData(buf, nil); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("BufferData after delete = %v, want ErrUnknownResource", err)
	}
}

func TestCreateShaderErrors(t *testing.T) {
	d := openNoop(t, 8, 8)

	tests := []struct {
		name   string
		stage  gpucore.ShaderStage
		source string
	}{
		{"empty", gpucore.StageVertex, ""},
		{"blank", gpucore.StageFragment, "  \n"},
		{"missing entry", gpucore.StageVertex, defaultFragmentSource},
		{"syntax", gpucore.StageFragment, "fn fs_main( {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateShader(tt.stage, tt.source)
			var se *ShaderError
			if !errors.As(err, &se) {
				t.Fatalf("CreateShader() = %v, want *ShaderError", err)
			}
			if se.Stage != tt.stage {
				t.Errorf("Stage = %v, want %v", se.Stage, tt.stage)
			}
		})
	}
}

func TestCreateProgramStageMismatch(t *testing.T) {
	d := openNoop(t, 8, 8)

	vs, err := d.CreateShader(gpucore.StageVertex, defaultVertexSource)
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	fs, err := d.CreateShader(gpucore.StageFragment, defaultFragmentSource)
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	if _, err := d.CreateProgram(fs, vs); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("CreateProgram(fs, vs) = %v, want ErrUnknownResource", err)
	}
	d.DeleteShader(vs)
	if _, err := d.CreateProgram(vs, fs); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("CreateProgram with deleted shader = %v, want ErrUnknownResource", err)
	}
}

func TestDrawAndClear(t *testing.T) {
	d := openNoop(t, 16, 16)
	prog, pos, uv := quad(t, d)

	src, _ := d.CreateTexture()
	if err := d.AllocTexture(src, 4, 4, make([]byte, 4*4*4)); err != nil {
		t.Fatalf("AllocTexture: %v", err)
	}
	dst, _ := d.CreateTexture()
	if err := d.AllocTexture(dst, 8, 8, nil); err != nil {
		t.Fatalf("AllocTexture: %v", err)
	}
	fb, err := d.CreateFramebuffer(dst)
	if err != nil {
		t.Fatalf("CreateFramebuffer: %v", err)
	}

	for _, target := range []gpucore.FramebufferID{fb, gpucore.InvalidID} {
		if err := d.Clear(target); err != nil {
			t.Errorf("Clear(%d): %v", target, err)
		}
		cmd := gpucore.DrawCommand{Program: prog, Target: target, Texture: src, Positions: pos, TexCoords: uv}
		if err := d.Draw(cmd); err != nil {
			t.Errorf("Draw(target %d): %v", target, err)
		}
	}

	d.DeleteFramebuffer(fb)
	if err := d.Clear(fb); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("Clear after delete = %v, want ErrUnknownResource", err)
	}
}

func TestDrawUnknownResources(t *testing.T) {
	d := openNoop(t, 8, 8)
	prog, pos, uv := quad(t, d)
	tex, _ := d.CreateTexture()
	if err := d.AllocTexture(tex, 2, 2, nil); err != nil {
		t.Fatalf("AllocTexture: %v", err)
	}
	valid := gpucore.DrawCommand{Program: prog, Texture: tex, Positions: pos, TexCoords: uv}

	tests := []struct {
		name   string
		modify func(*gpucore.DrawCommand)
	}{
		{"program", func(c *gpucore.DrawCommand) { c.Program = 999 }},
		{"texture", func(c *gpucore.DrawCommand) { c.Texture = 999 }},
		{"positions", func(c *gpucore.DrawCommand) { c.Positions = 999 }},
		{"texcoords", func(c *gpucore.DrawCommand) { c.TexCoords = 999 }},
		{"target", func(c *gpucore.DrawCommand) { c.Target = 999 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid
			tt.modify(&cmd)
			if err := d.Draw(cmd); !errors.Is(err, gpucore.ErrUnknownResource) {
				t.Errorf("Draw() = %v, want ErrUnknownResource", err)
			}
		})
	}
}

func TestReadPixels(t *testing.T) {
	d := openNoop(t, 10, 3)

	img, err := d.ReadPixels(gpucore.InvalidID)
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 3 {
		t.Errorf("bounds = %v, want 10x3", b)
	}

	if err := d.ResizeSurface(70, 5); err != nil {
		t.Fatalf("ResizeSurface: %v", err)
	}
	img, err = d.ReadPixels(gpucore.InvalidID)
	if err != nil {
		t.Fatalf("ReadPixels after resize: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 70 || b.Dy() != 5 {
		t.Errorf("bounds after resize = %v, want 70x5", b)
	}
}

func TestDeviceLost(t *testing.T) {
	d := openNoop(t, 8, 8)
	calls := 0
	d.OnLost(func() { calls++ })

	d.lock()
	err := d.fail("submit", hal.ErrDeviceLost)
	d.unlock()

	if !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("fail() = %v, want ErrDeviceLost", err)
	}
	if calls != 1 {
		t.Errorf("lost callbacks = %d, want 1", calls)
	}
	if err := d.Err(); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("Err() = %v, want ErrDeviceLost", err)
	}
	if err := d.Err(); err != nil {
		t.Errorf("second Err() = %v, want nil", err)
	}
	if _, err := d.CreateTexture(); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("CreateTexture after loss = %v, want ErrDeviceLost", err)
	}

	late := 0
	d.OnLost(func() { late++ })
	if late != 1 {
		t.Errorf("late OnLost callbacks = %d, want 1", late)
	}
}

func TestDestroy(t *testing.T) {
	d, err := Open(noop.API{}, Options{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	quad(t, d)
	d.Destroy()
	d.Destroy()

	if _, err := d.CreateTexture(); !errors.Is(err, gpucore.ErrDestroyed) {
		t.Errorf("CreateTexture after Destroy = %v, want ErrDestroyed", err)
	}
	if _, err := d.ReadPixels(gpucore.InvalidID); !errors.Is(err, gpucore.ErrDestroyed) {
		t.Errorf("ReadPixels after Destroy = %v, want ErrDestroyed", err)
	}
	d.DeleteTexture(1)
}

func TestSPIRVWords(t *testing.T) {
	words := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	if len(words) != 2 {
		t.Fatalf("len = %d, want 2", len(words))
	}
	if words[0] != 0x07230203 {
		t.Errorf("magic = %#x, want %#x", words[0], 0x07230203)
	}
	if words[1] != 0x00010000 {
		t.Errorf("version = %#x, want %#x", words[1], 0x00010000)
	}
}

func TestCompileSourceCached(t *testing.T) {
	source := defaultVertexSource + "\n// cached\n"
	first, err := compileSource(gpucore.StageVertex, source, false)
	if err != nil {
		t.Fatalf("compileSource() error = %v", err)
	}
	n := compiled.Len()
	second, err := compileSource(gpucore.StageVertex, source, false)
	if err != nil {
		t.Fatalf("compileSource() error = %v", err)
	}
	if compiled.Len() != n {
		t.Errorf("cache grew on a repeated compile: %d -> %d", n, compiled.Len())
	}
	if first.WGSL != second.WGSL {
		t.Error("cached source differs")
	}

	if _, ok := compiled.Get(shaderKey{stage: gpucore.StageFragment, source: "fn fs_main( {"}); ok {
		t.Error("failed translation was cached")
	}
	_, _ = compileSource(gpucore.StageFragment, "fn fs_main( {", false)
	if _, ok := compiled.Get(shaderKey{stage: gpucore.StageFragment, source: "fn fs_main( {"}); ok {
		t.Error("failed translation was cached")
	}
}
