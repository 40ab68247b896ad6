// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/wgpu/hal"
)

// textureFormat is the format of every texture and of the surface.
const textureFormat = gputypes.TextureFormatRGBA8Unorm

// uniformSize is the byte size of the draw uniform block.
const uniformSize = 16

// vertexStride is the byte stride of a vec2<f32> vertex.
const vertexStride = 8

// copyRowAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyRowAlignment = 256

// ErrNoAdapter is returned by Open when the backend exposes no adapter.
var ErrNoAdapter = errors.New("halgpu: no adapter")

// Options configures Open.
type Options struct {
	// Name is reported by Device.Name. Defaults to "hal".
	Name string
	// Width and Height size the surface.
	Width, Height int
	// SPIRV translates shaders to SPIR-V before handing them to the HAL.
	SPIRV bool
	// External marks a HAL device owned by the caller. Destroy releases
	// the resources created through the Device but not the HAL device.
	External bool
}

type texture struct {
	tex    hal.Texture
	view   hal.TextureView
	width  int
	height int
}

type buffer struct {
	buf  hal.Buffer
	size uint64
}

type shader struct {
	stage  gpucore.ShaderStage
	module hal.ShaderModule
}

type program struct {
	pipeline hal.RenderPipeline
}

// Device is a gpucore.Device backed by a HAL device and queue.
// It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	name     string
	spirv    bool
	external bool
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	sampler    hal.Sampler
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	surface    *texture

	next     uint64
	textures map[gpucore.TextureID]*texture
	buffers  map[gpucore.BufferID]*buffer
	fbs      map[gpucore.FramebufferID]gpucore.TextureID
	shaders  map[gpucore.ShaderID]*shader
	programs map[gpucore.ProgramID]*program

	latched   error
	lost      bool
	onLost    []func()
	pending   []func()
	destroyed bool
}

var _ gpucore.Device = (*Device)(nil)

// Open creates an instance on api, opens its first adapter and wraps the
// resulting device. The instance is destroyed with the device.
func Open(api hal.Backend, opts Options) (*Device, error) {
	inst, err := api.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.Backends(1) << api.Variant(),
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create instance: %w", err)
	}
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Destroy()
		return nil, ErrNoAdapter
	}
	info := adapters[0].Info
	od, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("halgpu: open adapter %q: %w", info.Name, err)
	}
	d, err := New(od.Device, od.Queue, opts)
	if err != nil {
		od.Device.Destroy()
		inst.Destroy()
		return nil, err
	}
	d.instance = inst
	slogger().Debug("halgpu: device opened", "backend", d.name, "adapter", info.Name, "vendor", info.Vendor)
	return d, nil
}

// New wraps an open HAL device and queue. On success the Device owns
// both unless opts.External is set.
func New(device hal.Device, queue hal.Queue, opts Options) (*Device, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("halgpu: invalid surface size %dx%d", opts.Width, opts.Height)
	}
	name := opts.Name
	if name == "" {
		name = "hal"
	}
	d := &Device{
		name:     name,
		spirv:    opts.SPIRV,
		external: opts.External,
		device:   device,
		queue:    queue,
		textures: make(map[gpucore.TextureID]*texture),
		buffers:  make(map[gpucore.BufferID]*buffer),
		fbs:      make(map[gpucore.FramebufferID]gpucore.TextureID),
		shaders:  make(map[gpucore.ShaderID]*shader),
		programs: make(map[gpucore.ProgramID]*program),
	}
	if err := d.createShared(opts.Width, opts.Height); err != nil {
		d.destroyShared()
		return nil, err
	}
	return d, nil
}

// createShared creates the sampler, layouts and surface used by every draw.
func (d *Device) createShared(width, height int) error {
	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "frame_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("halgpu: create sampler: %w", err)
	}
	d.sampler = sampler

	layout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "quad_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("halgpu: create bind group layout: %w", err)
	}
	d.layout = layout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "quad_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.layout},
	})
	if err != nil {
		return fmt.Errorf("halgpu: create pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout

	surface, err := d.newTexture("surface", width, height)
	if err != nil {
		return err
	}
	d.surface = surface
	return nil
}

func (d *Device) destroyShared() {
	if d.surface != nil {
		d.releaseTexture(d.surface)
		d.surface = nil
	}
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.layout != nil {
		d.device.DestroyBindGroupLayout(d.layout)
		d.layout = nil
	}
	if d.sampler != nil {
		d.device.DestroySampler(d.sampler)
		d.sampler = nil
	}
}

// lock acquires the device mutex.
func (d *Device) lock() { d.mu.Lock() }

// unlock releases the mutex and then runs lost callbacks queued while it
// was held.
func (d *Device) unlock() {
	fns := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// check must be called with the lock held.
func (d *Device) check() error {
	if d.destroyed {
		return gpucore.ErrDestroyed
	}
	if d.lost {
		return gpucore.ErrDeviceLost
	}
	return nil
}

// fail inspects a HAL error and latches device loss. Must be called with
// the lock held.
func (d *Device) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, hal.ErrDeviceLost) && !d.lost {
		d.lost = true
		if d.latched == nil {
			d.latched = gpucore.ErrDeviceLost
		}
		d.pending = append(d.pending, d.onLost...)
		d.onLost = nil
		slogger().Warn("halgpu: device lost", "backend", d.name, "op", op)
		return fmt.Errorf("halgpu: %s: %w", op, gpucore.ErrDeviceLost)
	}
	return fmt.Errorf("halgpu: %s: %w", op, err)
}

func (d *Device) nextID() uint64 {
	d.next++
	return d.next
}

func (d *Device) newTexture(label string, width, height int) (*texture, error) {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          extent(width, height),
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat,
		Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, d.fail("create texture", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label,
		Format:        textureFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, d.fail("create texture view", err)
	}
	return &texture{tex: tex, view: view, width: width, height: height}, nil
}

func (d *Device) releaseTexture(t *texture) {
	if t.view != nil {
		d.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		d.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// extent clamps to 1x1 so zero-sized nodes still own valid storage.
func extent(width, height int) hal.Extent3D {
	return hal.Extent3D{
		Width:              uint32(max(width, 1)),
		Height:             uint32(max(height, 1)),
		DepthOrArrayLayers: 1,
	}
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return d.name }

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture() (gpucore.TextureID, error) {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(d.nextID())
	d.textures[id] = &texture{}
	return id, nil
}

// AllocTexture implements gpucore.Device.
func (d *Device) AllocTexture(id gpucore.TextureID, width, height int, pix []byte) error {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return err
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	if pix != nil && len(pix) < width*height*4 {
		return fmt.Errorf("halgpu: short pixel data: %d bytes for %dx%d", len(pix), width, height)
	}
	nt, err := d.newTexture(fmt.Sprintf("texture_%d", id), width, height)
	if err != nil {
		return err
	}
	d.releaseTexture(t)
	*t = *nt
	if pix == nil || width == 0 || height == 0 {
		return nil
	}
	return d.upload(t, width, height, pix)
}

// WriteTexture implements gpucore.Device.
func (d *Device) WriteTexture(id gpucore.TextureID, width, height int, pix []byte) error {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return err
	}
	t, ok := d.textures[id]
	if !ok || t.tex == nil {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	if width > t.width || height > t.height {
		return fmt.Errorf("halgpu: write %dx%d exceeds texture %dx%d", width, height, t.width, t.height)
	}
	if len(pix) < width*height*4 {
		return fmt.Errorf("halgpu: short pixel data: %d bytes for %dx%d", len(pix), width, height)
	}
	if width == 0 || height == 0 {
		return nil
	}
	return d.upload(t, width, height, pix)
}

func (d *Device) upload(t *texture, width, height int, pix []byte) error {
	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, Aspect: gputypes.TextureAspectAll},
		pix[:width*height*4],
		&hal.ImageDataLayout{BytesPerRow: uint32(width * 4), RowsPerImage: uint32(height)},
		&hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	)
	return d.fail("write texture", err)
}

// DeleteTexture implements gpucore.Device.
func (d *Device) DeleteTexture(id gpucore.TextureID) {
	d.lock()
	defer d.unlock()
	t, ok := d.textures[id]
	if !ok || d.destroyed {
		return
	}
	d.releaseTexture(t)
	delete(d.textures, id)
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(data []float32) (gpucore.BufferID, error) {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	size := uint64(len(data) * 4)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "vertices",
		Size:  size,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, d.fail("create buffer", err)
	}
	b := &buffer{buf: buf, size: size}
	if err := d.queue.WriteBuffer(buf, 0, floatBytes(data)); err != nil {
		d.device.DestroyBuffer(buf)
		return gpucore.InvalidID, d.fail("write buffer", err)
	}
	id := gpucore.BufferID(d.nextID())
	d.buffers[id] = b
	return id, nil
}

// BufferData implements gpucore.Device.
func (d *Device) BufferData(id gpucore.BufferID, data []float32) error {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return err
	}
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if uint64(len(data)*4) > b.size {
		return fmt.Errorf("halgpu: %d floats exceed buffer of %d bytes", len(data), b.size)
	}
	return d.fail("write buffer", d.queue.WriteBuffer(b.buf, 0, floatBytes(data)))
}

// DeleteBuffer implements gpucore.Device.
func (d *Device) DeleteBuffer(id gpucore.BufferID) {
	d.lock()
	defer d.unlock()
	b, ok := d.buffers[id]
	if !ok || d.destroyed {
		return
	}
	d.device.DestroyBuffer(b.buf)
	delete(d.buffers, id)
}

func floatBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, f := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// CreateFramebuffer implements gpucore.Device.
func (d *Device) CreateFramebuffer(color gpucore.TextureID) (gpucore.FramebufferID, error) {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	if _, ok := d.textures[color]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, color)
	}
	id := gpucore.FramebufferID(d.nextID())
	d.fbs[id] = color
	return id, nil
}

// DeleteFramebuffer implements gpucore.Device.
func (d *Device) DeleteFramebuffer(id gpucore.FramebufferID) {
	d.lock()
	defer d.unlock()
	delete(d.fbs, id)
}

// DefaultShaderSource implements gpucore.Device.
func (d *Device) DefaultShaderSource(stage gpucore.ShaderStage) string {
	if stage == gpucore.StageVertex {
		return defaultVertexSource
	}
	return defaultFragmentSource
}

// CreateShader implements gpucore.Device.
func (d *Device) CreateShader(stage gpucore.ShaderStage, source string) (gpucore.ShaderID, error) {
	src, err := compileSource(stage, source, d.spirv)
	if err != nil {
		return gpucore.InvalidID, err
	}

	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  stage.String() + "_shader",
		Source: src,
	})
	if err != nil {
		return gpucore.InvalidID, d.fail("create shader module", err)
	}
	id := gpucore.ShaderID(d.nextID())
	d.shaders[id] = &shader{stage: stage, module: module}
	return id, nil
}

// DeleteShader implements gpucore.Device.
func (d *Device) DeleteShader(id gpucore.ShaderID) {
	d.lock()
	defer d.unlock()
	sh, ok := d.shaders[id]
	if !ok || d.destroyed {
		return
	}
	d.device.DestroyShaderModule(sh.module)
	delete(d.shaders, id)
}

// CreateProgram implements gpucore.Device.
func (d *Device) CreateProgram(vs, fs gpucore.ShaderID) (gpucore.ProgramID, error) {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	v, ok := d.shaders[vs]
	if !ok || v.stage != gpucore.StageVertex {
		return gpucore.InvalidID, fmt.Errorf("%w: vertex shader %d", gpucore.ErrUnknownResource, vs)
	}
	f, ok := d.shaders[fs]
	if !ok || f.stage != gpucore.StageFragment {
		return gpucore.InvalidID, fmt.Errorf("%w: fragment shader %d", gpucore.ErrUnknownResource, fs)
	}

	blend := gputypes.BlendStatePremultiplied()
	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "quad_pipeline",
		Layout: d.pipeLayout,
		Vertex: hal.VertexState{
			Module:     v.module,
			EntryPoint: vertexEntry,
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     f.module,
			EntryPoint: fragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    textureFormat,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return gpucore.InvalidID, d.fail("create render pipeline", err)
	}
	id := gpucore.ProgramID(d.nextID())
	d.programs[id] = &program{pipeline: pipeline}
	return id, nil
}

// quadVertexLayout binds positions to slot 0 and texture coordinates to
// slot 1, one vec2<f32> per vertex each.
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 1},
			},
		},
	}
}

// DeleteProgram implements gpucore.Device.
func (d *Device) DeleteProgram(id gpucore.ProgramID) {
	d.lock()
	defer d.unlock()
	p, ok := d.programs[id]
	if !ok || d.destroyed {
		return
	}
	d.device.DestroyRenderPipeline(p.pipeline)
	delete(d.programs, id)
}

// ResizeSurface implements gpucore.Device.
func (d *Device) ResizeSurface(width, height int) error {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return err
	}
	if d.surface.width == width && d.surface.height == height {
		return nil
	}
	nt, err := d.newTexture("surface", width, height)
	if err != nil {
		return err
	}
	d.releaseTexture(d.surface)
	d.surface = nt
	slogger().Debug("halgpu: surface resized", "width", width, "height", height)
	return nil
}

// SurfaceSize returns the current surface size.
func (d *Device) SurfaceSize() (int, int) {
	d.lock()
	defer d.unlock()
	if d.surface == nil {
		return 0, 0
	}
	return d.surface.width, d.surface.height
}

// target resolves a framebuffer to the texture it renders into. Must be
// called with the lock held.
func (d *Device) target(fb gpucore.FramebufferID) (*texture, error) {
	if fb == gpucore.InvalidID {
		return d.surface, nil
	}
	tid, ok := d.fbs[fb]
	if !ok {
		return nil, fmt.Errorf("%w: framebuffer %d", gpucore.ErrUnknownResource, fb)
	}
	t, ok := d.textures[tid]
	if !ok || t.tex == nil {
		return nil, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, tid)
	}
	return t, nil
}

// Clear implements gpucore.Device.
func (d *Device) Clear(fb gpucore.FramebufferID) error {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return err
	}
	t, err := d.target(fb)
	if err != nil {
		return err
	}
	return d.record("clear", func(enc hal.CommandEncoder) {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "clear",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       t.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{},
			}},
		})
		rp.End()
	})
}

// Draw implements gpucore.Device. The texture unit is ignored: the source
// texture always binds at binding 1.
func (d *Device) Draw(cmd gpucore.DrawCommand) error {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return err
	}
	p, ok := d.programs[cmd.Program]
	if !ok {
		return fmt.Errorf("%w: program %d", gpucore.ErrUnknownResource, cmd.Program)
	}
	src, ok := d.textures[cmd.Texture]
	if !ok || src.tex == nil {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, cmd.Texture)
	}
	pos, ok := d.buffers[cmd.Positions]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, cmd.Positions)
	}
	uv, ok := d.buffers[cmd.TexCoords]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, cmd.TexCoords)
	}
	dst, err := d.target(cmd.Target)
	if err != nil {
		return err
	}

	yScale := float32(-1)
	if cmd.Target == gpucore.InvalidID {
		yScale = 1
	}
	ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "quad_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return d.fail("create uniform buffer", err)
	}
	defer d.device.DestroyBuffer(ub)
	if err := d.queue.WriteBuffer(ub, 0, floatBytes([]float32{yScale, 0, 0, 0})); err != nil {
		return d.fail("write uniform buffer", err)
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "quad_bind_group",
		Layout: d.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Size: uniformSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: src.view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: d.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return d.fail("create bind group", err)
	}
	defer d.device.DestroyBindGroup(bg)

	return d.record("draw", func(enc hal.CommandEncoder) {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "draw",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    dst.view,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		rp.SetPipeline(p.pipeline)
		rp.SetBindGroup(0, bg, nil)
		rp.SetVertexBuffer(0, pos.buf, 0)
		rp.SetVertexBuffer(1, uv.buf, 0)
		rp.SetViewport(0, 0, float32(dst.width), float32(dst.height), 0, 1)
		rp.Draw(gpucore.QuadVertices, 1, 0, 0)
		rp.End()
	})
}

// record encodes one command buffer with fn, submits it and waits for the
// queue to drain. Must be called with the lock held.
func (d *Device) record(label string, fn func(hal.CommandEncoder)) error {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return d.fail("create command encoder", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return d.fail("begin encoding", err)
	}
	fn(enc)
	cb, err := enc.EndEncoding()
	if err != nil {
		return d.fail("end encoding", err)
	}
	defer d.device.FreeCommandBuffer(cb)
	if _, err := d.queue.Submit([]hal.CommandBuffer{cb}); err != nil {
		return d.fail("submit", err)
	}
	return d.fail("wait idle", d.device.WaitIdle())
}

// ReadPixels implements gpucore.Device. Rows are returned in texture
// order, so for the surface the first row is the top of the image.
func (d *Device) ReadPixels(fb gpucore.FramebufferID) (*image.RGBA, error) {
	d.lock()
	defer d.unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	t, err := d.target(fb)
	if err != nil {
		return nil, err
	}
	w, h := max(t.width, 1), max(t.height, 1)
	row := w * 4
	stride := (row + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
	size := uint64(stride * h)

	rb, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, d.fail("create readback buffer", err)
	}
	defer d.device.DestroyBuffer(rb)

	err = d.record("readback", func(enc hal.CommandEncoder) {
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: t.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
		enc.CopyTextureToBuffer(t.tex, rb, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: uint32(stride), RowsPerImage: uint32(h)},
			TextureBase:  hal.ImageCopyTexture{Texture: t.tex, Aspect: gputypes.TextureAspectAll},
			Size:         hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		}})
	})
	if err != nil {
		return nil, err
	}

	m, err := d.device.MapBuffer(rb, 0, size)
	if err != nil {
		return nil, d.fail("map readback buffer", err)
	}
	src := unsafe.Slice((*byte)(m.Ptr), size)
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for y := 0; y < t.height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+t.width*4], src[y*stride:])
	}
	if err := d.device.UnmapBuffer(rb); err != nil {
		return nil, d.fail("unmap readback buffer", err)
	}
	return img, nil
}

// Err implements gpucore.Device.
func (d *Device) Err() error {
	d.lock()
	defer d.unlock()
	err := d.latched
	d.latched = nil
	return err
}

// OnLost implements gpucore.Device. fn runs on the goroutine that observed
// the loss, after the device lock is released.
func (d *Device) OnLost(fn func()) {
	d.lock()
	defer d.unlock()
	if d.lost {
		d.pending = append(d.pending, fn)
		return
	}
	d.onLost = append(d.onLost, fn)
}

// Destroy implements gpucore.Device.
func (d *Device) Destroy() {
	d.lock()
	defer d.unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	if err := d.device.WaitIdle(); err != nil {
		slogger().Debug("halgpu: wait idle on destroy", "err", err)
	}
	for id, p := range d.programs {
		d.device.DestroyRenderPipeline(p.pipeline)
		delete(d.programs, id)
	}
	for id, sh := range d.shaders {
		d.device.DestroyShaderModule(sh.module)
		delete(d.shaders, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
	for id, t := range d.textures {
		d.releaseTexture(t)
		delete(d.textures, id)
	}
	clear(d.fbs)
	d.destroyShared()
	d.onLost = nil
	if !d.external {
		d.device.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	slogger().Debug("halgpu: device destroyed", "backend", d.name)
}
