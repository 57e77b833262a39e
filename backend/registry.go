package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gldraw"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first that opens wins).
	backendPriority = []string{BackendGL, BackendWGPU, BackendSoft}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Open opens a context from the named backend.
func Open(name string, cfg Config) (gldraw.Context, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return factory(cfg)
}

// OpenDefault opens the first backend in priority order that succeeds
// (gl, wgpu, then soft), then any other registered backend. It returns the
// name of the backend that opened.
func OpenDefault(cfg Config) (gldraw.Context, string, error) {
	var errs []error
	tried := make(map[string]bool)
	try := func(name string) (gldraw.Context, bool) {
		tried[name] = true
		ctx, err := Open(name, cfg)
		if err != nil {
			if !errors.Is(err, ErrBackendNotAvailable) {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			return nil, false
		}
		return ctx, true
	}
	for _, name := range backendPriority {
		if ctx, ok := try(name); ok {
			return ctx, name, nil
		}
	}
	for _, name := range Available() {
		if tried[name] {
			continue
		}
		if ctx, ok := try(name); ok {
			return ctx, name, nil
		}
	}
	if len(errs) == 0 {
		errs = append(errs, ErrBackendNotAvailable)
	}
	return nil, "", &gldraw.ContextUnavailableError{Reason: errors.Join(errs...).Error()}
}
