// Package guard provides the registry of named predicate builders used by
// rule conditions. Every built predicate pre-checks its operand type, so a
// value of the wrong shape makes the predicate false instead of erroring.
package guard

import (
	"sort"
	"strings"
	"sync"
)

// Predicate is a compiled guard: it reads the bound variable from the
// evaluation environment and decides acceptance.
type Predicate func(env map[string]any) bool

// BuilderFn builds a predicate for one (variable, parameter) pair.
type BuilderFn func(variable string, param any) Predicate

// UnknownGuardError is returned when a GuardSpec names a predicate absent
// from the registry. It enumerates the currently known names.
type UnknownGuardError struct {
	Name  string
	Known []string
}

func (e *UnknownGuardError) Error() string {
	return "unknown guard: " + e.Name + " (known guards: " + strings.Join(e.Known, ", ") + ")"
}

// Registry maps guard names to predicate builders. The default registry can
// be replaced wholesale; the engine only ever consumes the resolved registry.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]BuilderFn
}

// NewRegistry returns a registry with the default guard set.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]BuilderFn)}
	RegisterDefaults(r)
	return r
}

// NewEmptyRegistry returns a registry with no guards, for wholesale
// replacement from configuration.
func NewEmptyRegistry() *Registry {
	return &Registry{builders: make(map[string]BuilderFn)}
}

// Register adds or overrides a guard builder.
func (r *Registry) Register(name string, fn BuilderFn) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[strings.ToLower(name)] = fn
	return r
}

// Has reports whether a guard name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[strings.ToLower(name)]
	return ok
}

// Names returns all registered guard names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for name := range r.builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build returns the predicate for a named guard over (variable, param), or
// an UnknownGuardError naming every registered guard.
func (r *Registry) Build(name, variable string, param any) (Predicate, error) {
	r.mu.RLock()
	fn, ok := r.builders[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownGuardError{Name: name, Known: r.Names()}
	}
	return fn(variable, param), nil
}

// Count returns the number of registered guards.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builders)
}
