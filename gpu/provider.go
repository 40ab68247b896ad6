//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/vgraph"
	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/vgraph/internal/halgpu"
	"github.com/gogpu/wgpu/hal"
)

// SharedBackendName is the name UseProvider registers under.
const SharedBackendName = "shared"

// ErrNoHalAccess is returned for providers that do not expose their HAL
// device and queue.
var ErrNoHalAccess = errors.New("gpu: provider does not expose HAL device")

// halProvider is implemented by device providers that give direct access
// to the wgpu HAL objects behind their WebGPU handles.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// sharedBackend opens devices on a HAL device owned by the provider.
// Destroying a context releases its resources but leaves the device open.
type sharedBackend struct {
	provider gpucontext.DeviceProvider
	device   hal.Device
	queue    hal.Queue
}

// NewProviderBackend returns a backend that renders on the device of
// provider. The provider must also implement HalDevice() any and
// HalQueue() any returning a hal.Device and hal.Queue.
func NewProviderBackend(provider gpucontext.DeviceProvider) (vgraph.Backend, error) {
	if provider == nil {
		return nil, errors.New("gpu: nil device provider")
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHalAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice returned %T", ErrNoHalAccess, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue returned %T", ErrNoHalAccess, hp.HalQueue())
	}
	return &sharedBackend{provider: provider, device: device, queue: queue}, nil
}

// UseProvider registers the device of provider as the preferred backend.
// Software adapters register at the software priority so a hardware
// backend still wins.
func UseProvider(provider gpucontext.DeviceProvider) error {
	b, err := NewProviderBackend(provider)
	if err != nil {
		return err
	}
	info := provider.AdapterInfo()
	priority := hardwarePriority + 1
	if info.Type == gpucontext.AdapterTypeSoftware {
		priority = softwarePriority
	}
	vgraph.Logger().Info("gpu: using shared device", "adapter", info.Name, "priority", priority)
	return vgraph.Register(b, priority)
}

func (b *sharedBackend) Name() string { return SharedBackendName }

func (b *sharedBackend) Available() bool { return true }

func (b *sharedBackend) NewDevice(opts vgraph.DeviceOptions) (gpucore.Device, error) {
	d, err := halgpu.New(b.device, b.queue, halgpu.Options{
		Name:     SharedBackendName,
		Width:    opts.Width,
		Height:   opts.Height,
		External: true,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
