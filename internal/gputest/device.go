// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gputest provides an in-memory gpucore.Device that records every
// call, for tests of code that renders through gpucore.
package gputest

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/vgraph/gpucore"
)

// Texture is the recorded state of a texture.
type Texture struct {
	Width, Height int
	Allocs        int
	Writes        int
}

// Device is a recording gpucore.Device. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	next    uint64
	live    map[uint64]string
	kinds   map[string]int
	deletes map[string]int

	textures map[gpucore.TextureID]*Texture
	buffers  map[gpucore.BufferID][]float32
	fbs      map[gpucore.FramebufferID]gpucore.TextureID

	// Draws lists every successful draw in order.
	Draws []gpucore.DrawCommand
	// Clears lists every cleared target in order.
	Clears []gpucore.FramebufferID
	// DoubleDeletes counts deletes of IDs that were not live.
	DoubleDeletes int

	surfaceW, surfaceH int
	fail               map[string]error
	latched            error
	lost               []func()
	destroyed          bool
	destroyCalls       int
}

// New creates a device whose surface has the given size.
func New(width, height int) *Device {
	return &Device{
		live:     make(map[uint64]string),
		kinds:    make(map[string]int),
		deletes:  make(map[string]int),
		textures: make(map[gpucore.TextureID]*Texture),
		buffers:  make(map[gpucore.BufferID][]float32),
		fbs:      make(map[gpucore.FramebufferID]gpucore.TextureID),
		surfaceW: width,
		surfaceH: height,
		fail:     make(map[string]error),
	}
}

// Fail makes the named method (e.g. "CreateShader") return err.
// A nil err clears the failure.
func (d *Device) Fail(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, method)
		return
	}
	d.fail[method] = err
}

// Latch sets the error returned by the next Err call.
func (d *Device) Latch(err error) {
	d.mu.Lock()
	d.latched = err
	d.mu.Unlock()
}

// Lose invokes the OnLost callbacks.
func (d *Device) Lose() {
	d.mu.Lock()
	fns := d.lost
	d.lost = nil
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Live returns the number of live resources of a kind ("texture",
// "buffer", "framebuffer", "shader", "program"), or of all kinds when
// kind is empty.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

// Created returns how many resources of kind were created.
func (d *Device) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kinds[kind]
}

// Deleted returns how many resources of kind were deleted.
func (d *Device) Deleted(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deletes[kind]
}

// TextureState returns a copy of the recorded texture state.
func (d *Device) TextureState(id gpucore.TextureID) (Texture, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return Texture{}, false
	}
	return *t, true
}

// BufferContent returns the current content of a buffer.
func (d *Device) BufferContent(id gpucore.BufferID) []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float32(nil), d.buffers[id]...)
}

// SurfaceSize returns the current surface size.
func (d *Device) SurfaceSize() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaceW, d.surfaceH
}

// Destroyed reports whether Destroy was called, and how many times.
func (d *Device) Destroyed() (bool, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed, d.destroyCalls
}

// ResetDraws forgets recorded draws and clears.
func (d *Device) ResetDraws() {
	d.mu.Lock()
	d.Draws = nil
	d.Clears = nil
	d.mu.Unlock()
}

// DrawLog returns a copy of the recorded draws.
func (d *Device) DrawLog() []gpucore.DrawCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpucore.DrawCommand(nil), d.Draws...)
}

func (d *Device) check(method string) error {
	if d.destroyed {
		return gpucore.ErrDestroyed
	}
	return d.fail[method]
}

func (d *Device) create(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	d.kinds[kind]++
	return d.next
}

func (d *Device) remove(id uint64, kind string) bool {
	if id == gpucore.InvalidID {
		return false
	}
	if d.live[id] != kind {
		d.DoubleDeletes++
		return false
	}
	delete(d.live, id)
	d.deletes[kind]++
	return true
}

func (d *Device) isLive(id uint64, kind string) bool {
	return d.live[id] == kind
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return "gputest" }

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture() (gpucore.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateTexture"); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(d.create("texture"))
	d.textures[id] = &Texture{}
	return id, nil
}

// AllocTexture implements gpucore.Device.
func (d *Device) AllocTexture(tex gpucore.TextureID, width, height int, pix []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("AllocTexture"); err != nil {
		return err
	}
	t, ok := d.textures[tex]
	if !ok || !d.isLive(uint64(tex), "texture") {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, tex)
	}
	if pix != nil && len(pix) < width*height*4 {
		return fmt.Errorf("gputest: short pixel data: %d bytes for %dx%d", len(pix), width, height)
	}
	t.Width, t.Height = width, height
	t.Allocs++
	return nil
}

// WriteTexture implements gpucore.Device.
func (d *Device) WriteTexture(tex gpucore.TextureID, width, height int, pix []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("WriteTexture"); err != nil {
		return err
	}
	t, ok := d.textures[tex]
	if !ok || !d.isLive(uint64(tex), "texture") {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, tex)
	}
	if width > t.Width || height > t.Height {
		return fmt.Errorf("gputest: write %dx%d exceeds texture %dx%d", width, height, t.Width, t.Height)
	}
	t.Writes++
	return nil
}

// DeleteTexture implements gpucore.Device.
func (d *Device) DeleteTexture(tex gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(uint64(tex), "texture") {
		delete(d.textures, tex)
	}
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(data []float32) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateBuffer"); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BufferID(d.create("buffer"))
	d.buffers[id] = append([]float32(nil), data...)
	return id, nil
}

// BufferData implements gpucore.Device.
func (d *Device) BufferData(buf gpucore.BufferID, data []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("BufferData"); err != nil {
		return err
	}
	if !d.isLive(uint64(buf), "buffer") {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, buf)
	}
	d.buffers[buf] = append([]float32(nil), data...)
	return nil
}

// DeleteBuffer implements gpucore.Device.
func (d *Device) DeleteBuffer(buf gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(uint64(buf), "buffer") {
		delete(d.buffers, buf)
	}
}

// CreateFramebuffer implements gpucore.Device.
func (d *Device) CreateFramebuffer(color gpucore.TextureID) (gpucore.FramebufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateFramebuffer"); err != nil {
		return gpucore.InvalidID, err
	}
	if !d.isLive(uint64(color), "texture") {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, color)
	}
	id := gpucore.FramebufferID(d.create("framebuffer"))
	d.fbs[id] = color
	return id, nil
}

// DeleteFramebuffer implements gpucore.Device.
func (d *Device) DeleteFramebuffer(fb gpucore.FramebufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(uint64(fb), "framebuffer") {
		delete(d.fbs, fb)
	}
}

// DefaultShaderSource implements gpucore.Device.
func (d *Device) DefaultShaderSource(stage gpucore.ShaderStage) string {
	return "gputest " + stage.String()
}

// CreateShader implements gpucore.Device.
func (d *Device) CreateShader(stage gpucore.ShaderStage, source string) (gpucore.ShaderID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateShader"); err != nil {
		return gpucore.InvalidID, err
	}
	if source == "" {
		return gpucore.InvalidID, errors.New("gputest: empty shader source")
	}
	return gpucore.ShaderID(d.create("shader")), nil
}

// DeleteShader implements gpucore.Device.
func (d *Device) DeleteShader(sh gpucore.ShaderID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(uint64(sh), "shader")
}

// CreateProgram implements gpucore.Device.
func (d *Device) CreateProgram(vs, fs gpucore.ShaderID) (gpucore.ProgramID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateProgram"); err != nil {
		return gpucore.InvalidID, err
	}
	if !d.isLive(uint64(vs), "shader") || !d.isLive(uint64(fs), "shader") {
		return gpucore.InvalidID, fmt.Errorf("%w: shader", gpucore.ErrUnknownResource)
	}
	return gpucore.ProgramID(d.create("program")), nil
}

// DeleteProgram implements gpucore.Device.
func (d *Device) DeleteProgram(p gpucore.ProgramID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(uint64(p), "program")
}

// ResizeSurface implements gpucore.Device.
func (d *Device) ResizeSurface(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("ResizeSurface"); err != nil {
		return err
	}
	d.surfaceW, d.surfaceH = width, height
	return nil
}

// Clear implements gpucore.Device.
func (d *Device) Clear(target gpucore.FramebufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("Clear"); err != nil {
		return err
	}
	d.Clears = append(d.Clears, target)
	return nil
}

// Draw implements gpucore.Device.
func (d *Device) Draw(cmd gpucore.DrawCommand) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("Draw"); err != nil {
		return err
	}
	if !d.isLive(uint64(cmd.Program), "program") {
		return fmt.Errorf("%w: program %d", gpucore.ErrUnknownResource, cmd.Program)
	}
	if !d.isLive(uint64(cmd.Texture), "texture") {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, cmd.Texture)
	}
	if cmd.Target != gpucore.InvalidID && !d.isLive(uint64(cmd.Target), "framebuffer") {
		return fmt.Errorf("%w: framebuffer %d", gpucore.ErrUnknownResource, cmd.Target)
	}
	d.Draws = append(d.Draws, cmd)
	return nil
}

// ReadPixels implements gpucore.Device.
func (d *Device) ReadPixels(target gpucore.FramebufferID) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("ReadPixels"); err != nil {
		return nil, err
	}
	w, h := d.surfaceW, d.surfaceH
	if target != gpucore.InvalidID {
		tex, ok := d.fbs[target]
		if !ok {
			return nil, fmt.Errorf("%w: framebuffer %d", gpucore.ErrUnknownResource, target)
		}
		w, h = d.textures[tex].Width, d.textures[tex].Height
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

// Err implements gpucore.Device.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.latched
	d.latched = nil
	return err
}

// OnLost implements gpucore.Device.
func (d *Device) OnLost(fn func()) {
	d.mu.Lock()
	d.lost = append(d.lost, fn)
	d.mu.Unlock()
}

// Destroy implements gpucore.Device.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyCalls++
	d.destroyed = true
	d.lost = nil
}
