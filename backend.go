package vgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gogpu/vgraph/gpucore"
)

// DeviceOptions is passed to Backend.NewDevice.
type DeviceOptions struct {
	Width  int
	Height int
	Alpha  bool
}

// Backend creates GPU devices for contexts.
//
// Backends register themselves from an init function:
//
//	func init() {
//	    vgraph.Register(&vulkanBackend{}, 100)
//	}
//
// A backend that implements SetLogger(*slog.Logger) receives the package
// logger on registration and on every SetLogger call.
type Backend interface {
	Name() string
	// Available reports whether the backend can run on this system.
	Available() bool
	NewDevice(opts DeviceOptions) (gpucore.Device, error)
}

// Registry errors.
var (
	// ErrNoBackendAvailable is returned when no GPU backend is registered
	// or available on the current system.
	ErrNoBackendAvailable = errors.New("vgraph: no backend available")
)

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return fmt.Sprintf("vgraph: backend %q not registered", e.Name)
}

// BackendUnavailableError indicates a registered backend cannot run here.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("vgraph: backend %q not available", e.Name)
}

type registryEntry struct {
	backend  Backend
	priority int
}

// Registry holds GPU backends ordered by priority (higher is preferred).
// Standard priorities: 100 for hardware backends, 10 for test and
// software-emulated devices.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

var defaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds b to the global registry.
func Register(b Backend, priority int) error {
	return defaultRegistry.Register(b, priority)
}

// Backends returns the names of the globally registered backends, highest
// priority first.
func Backends() []string {
	return defaultRegistry.List()
}

// Register adds b. Registering a name twice replaces the previous entry.
func (r *Registry) Register(b Backend, priority int) error {
	if b == nil || b.Name() == "" {
		return errors.New("vgraph: register: backend must have a name")
	}
	r.mu.Lock()
	r.entries[b.Name()] = &registryEntry{backend: b, priority: priority}
	r.mu.Unlock()

	if ls, ok := b.(loggerSetter); ok {
		ls.SetLogger(Logger())
	}
	return nil
}

// Unregister removes the named backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.entries, name)
	r.mu.Unlock()
}

// List returns all backend names sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames(false)
}

// Available returns the names of available backends sorted by priority.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames(true)
}

// NewDevice opens a device on the best available backend. It returns the
// device and the name of the backend that produced it.
func (r *Registry) NewDevice(opts DeviceOptions) (gpucore.Device, string, error) {
	names := r.Available()
	if len(names) == 0 {
		return nil, "", ErrNoBackendAvailable
	}
	var lastErr error
	for _, name := range names {
		dev, err := r.NewDeviceByName(name, opts)
		if err == nil {
			return dev, name, nil
		}
		Logger().Debug("vgraph: backend failed", "backend", name, "err", err)
		lastErr = err
	}
	return nil, "", lastErr
}

// NewDeviceByName opens a device on a specific backend.
func (r *Registry) NewDeviceByName(name string, opts DeviceOptions) (gpucore.Device, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !e.backend.Available() {
		return nil, &BackendUnavailableError{Name: name}
	}
	return e.backend.NewDevice(opts)
}

func (r *Registry) propagateLogger(l *slog.Logger) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if ls, ok := e.backend.(loggerSetter); ok {
			ls.SetLogger(l)
		}
	}
}

// sortedNames must be called with the lock held.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	type entry struct {
		name     string
		priority int
	}
	entries := make([]entry, 0, len(r.entries))
	for name, e := range r.entries {
		if onlyAvailable && !e.backend.Available() {
			continue
		}
		entries = append(entries, entry{name: name, priority: e.priority})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].name < entries[j].name
	})
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}
