// ABOUTME: Transport Driver Registry mapping an exec_type tag to its driver
// ABOUTME: The engine looks up a driver by tag and never constructs shell strings itself

package transport

import (
	"fmt"
	"sync"

	"github.com/taskerd/tasker/pkg/types"
)

// Registry maps exec_type tags (e.g. "local", "remote-key", "remote-agent")
// to the driver that executes on that channel.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]types.TransportDriver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]types.TransportDriver)}
}

// Register binds execType to driver. Re-registering a tag replaces the
// previous driver (tests use this to install doubles).
func (r *Registry) Register(execType string, driver types.TransportDriver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[execType] = driver
}

// Get returns the driver registered for execType.
func (r *Registry) Get(execType string) (types.TransportDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[execType]
	if !ok {
		return nil, fmt.Errorf("no transport driver registered for exec_type %q", execType)
	}
	return d, nil
}
