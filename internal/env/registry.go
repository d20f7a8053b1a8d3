package env

import (
	"fmt"
	"sort"
	"sync"

	"bdicore/internal/logging"
)

// Registry holds the environments of a multi-agent system by name.
type Registry struct {
	mu   sync.RWMutex
	envs map[string]*Table
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{envs: make(map[string]*Table)}
}

// Add registers t under its name.
func (r *Registry) Add(t *Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.envs[t.Name()]; exists {
		return fmt.Errorf("environment %s already registered", t.Name())
	}
	r.envs[t.Name()] = t
	logging.EnvDebug("registered environment %s (%d actions)", t.Name(), t.Count())
	return nil
}

// Get returns the environment called name.
func (r *Registry) Get(name string) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.envs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEnvironmentNotFound, name)
	}
	return t, nil
}

// Names returns the environment names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.envs))
	for n := range r.envs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
