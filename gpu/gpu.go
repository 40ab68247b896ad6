//go:build !nogpu

// Package gpu registers wgpu HAL backends for video graph contexts.
//
// Importing this package registers the software rasterizer backend at
// priority 10 and, where the platform supports it, the Vulkan backend at
// priority 100. A Context created afterwards picks the best backend that
// can open an adapter and falls back to the raster canvas otherwise.
//
// Usage:
//
//	import _ "github.com/gogpu/vgraph/gpu"
//
// Applications that already own a GPU device (e.g. a gogpu window) can
// share it with UseProvider instead of opening a second one.
package gpu

import (
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/vgraph"
	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/vgraph/internal/halgpu"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/software"
)

// Backend priorities.
const (
	hardwarePriority = 100
	softwarePriority = 10
)

func init() {
	register(newBackend("software", software.API{}, false), softwarePriority)
}

func register(b vgraph.Backend, priority int) {
	if err := vgraph.Register(b, priority); err != nil {
		vgraph.Logger().Warn("gpu: backend registration failed", "backend", b.Name(), "err", err)
	}
}

// halBackend adapts a wgpu HAL backend to vgraph.Backend.
type halBackend struct {
	name  string
	api   hal.Backend
	spirv bool

	once      sync.Once
	available bool
}

func newBackend(name string, api hal.Backend, spirv bool) *halBackend {
	return &halBackend{name: name, api: api, spirv: spirv}
}

func (b *halBackend) Name() string { return b.name }

// Available probes the backend once for an adapter.
func (b *halBackend) Available() bool {
	b.once.Do(b.probe)
	return b.available
}

func (b *halBackend) probe() {
	inst, err := b.api.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.Backends(1) << b.api.Variant(),
	})
	if err != nil {
		vgraph.Logger().Debug("gpu: backend unavailable", "backend", b.name, "err", err)
		return
	}
	defer inst.Destroy()
	b.available = len(inst.EnumerateAdapters(nil)) > 0
}

func (b *halBackend) NewDevice(opts vgraph.DeviceOptions) (gpucore.Device, error) {
	d, err := halgpu.Open(b.api, halgpu.Options{
		Name:   b.name,
		Width:  opts.Width,
		Height: opts.Height,
		SPIRV:  b.spirv,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SetLogger forwards the vgraph logger to the HAL device layer.
func (b *halBackend) SetLogger(l *slog.Logger) {
	halgpu.SetLogger(l)
}
