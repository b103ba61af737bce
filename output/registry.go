package output

import (
	"errors"
	"sync"
)

// ErrNoBackend is returned when no surface backend is registered or the
// requested one is unknown.
var ErrNoBackend = errors.New("output: no surface backend available")

// Options selects how and where the surface is created.
type Options struct {
	// Display names a specific output on backends that have several.
	// Empty picks the first.
	Display string
	// Windowed requests a plain window instead of a background layer.
	Windowed bool
}

// Backend creates surfaces and enumerates displays.
type Backend interface {
	// Name returns the backend identifier (e.g. "wayland", "window").
	Name() string
	// ListDisplays enumerates the display names Open accepts.
	ListDisplays() ([]string, error)
	// Open creates the drawable.
	Open(opts Options) (Output, error)
}

// BackendFactory creates a backend instance.
type BackendFactory func() Backend

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for backend selection (first available wins).
	backendPriority = []string{"wayland", "window"}
)

// Register registers a backend factory under a name. Platform backends
// call this from init().
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend. Useful for tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Default returns the best available backend. Windowed mode skips
// straight to the window backend.
func Default(windowed bool) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if windowed {
		if factory, ok := backends["window"]; ok {
			return factory(), nil
		}
		return nil, ErrNoBackend
	}
	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			return factory(), nil
		}
	}
	for _, factory := range backends {
		return factory(), nil
	}
	return nil, ErrNoBackend
}
