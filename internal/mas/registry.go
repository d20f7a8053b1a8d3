// Package mas assembles modules into a multi-agent system: a registry that
// controls which module may reach which, and a runner that drives every
// module's deliberation cycle on its own goroutine.
package mas

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"bdicore/internal/agent"
	"bdicore/internal/logging"
)

var (
	// ErrModuleNotAccessible is returned when a module reaches for one it
	// has no access to.
	ErrModuleNotAccessible = errors.New("module not accessible")
	// ErrModuleExists is returned when adding a second module by one name.
	ErrModuleExists = errors.New("module already registered")
)

// Registry holds the modules of a system by name. A module can always reach
// itself; any other access must be granted.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*agent.Module
	order   []string
	grants  map[string]map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*agent.Module),
		grants:  make(map[string]map[string]bool),
	}
}

// Add registers m.
func (r *Registry) Add(m *agent.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[m.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrModuleExists, m.Name())
	}
	r.modules[m.Name()] = m
	r.order = append(r.order, m.Name())
	logging.Runner("registered module %s", m.Name())
	return nil
}

// Grant lets caller reach target.
func (r *Registry) Grant(caller, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants[caller] == nil {
		r.grants[caller] = make(map[string]bool)
	}
	r.grants[caller][target] = true
}

// Resolve returns target on behalf of caller.
func (r *Registry) Resolve(caller, target string) (*agent.Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s does not exist", ErrModuleNotAccessible, target)
	}
	if caller != target && !r.grants[caller][target] {
		return nil, fmt.Errorf("%w: %s cannot reach %s", ErrModuleNotAccessible, caller, target)
	}
	if m.Deactivated() {
		return nil, fmt.Errorf("%w: %s: %w", ErrModuleNotAccessible, target, agent.ErrModuleDeactivated)
	}
	return m, nil
}

// Get returns the module called name.
func (r *Registry) Get(name string) (*agent.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Modules returns the modules in registration order.
func (r *Registry) Modules() []*agent.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*agent.Module, len(r.order))
	for i, n := range r.order {
		out[i] = r.modules[n]
	}
	return out
}

// Names returns the module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// Remove deactivates and unregisters the module called name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	m, ok := r.modules[name]
	if ok {
		delete(r.modules, name)
		delete(r.grants, name)
		for i, n := range r.order {
			if n == name {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	if ok {
		m.Deactivate()
	}
	return ok
}
