package validator

import (
	"sort"
	"sync"

	"github.com/rulegate/rulegate/engine"
	"github.com/rulegate/rulegate/engine/compiler"
	"github.com/rulegate/rulegate/engine/guard"
)

// Registry maps names to published validators. Publishing is an atomic
// replacement under the registry lock; readers of a previously returned
// *Validator keep evaluating against that instance, which stays valid
// forever. Strict read-after-write consistency across callers is not a goal.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]*Validator
	guards     *guard.Registry
}

// NewRegistry returns a registry backed by the default guard set.
func NewRegistry() *Registry {
	return NewRegistryWithGuards(guard.NewRegistry())
}

// NewRegistryWithGuards returns a registry backed by a replacement guard
// set, e.g. one resolved from configuration at process start.
func NewRegistryWithGuards(g *guard.Registry) *Registry {
	return &Registry{validators: make(map[string]*Validator), guards: g}
}

// Guards returns the guard registry builds resolve against.
func (r *Registry) Guards() *guard.Registry { return r.guards }

// Lookup returns the currently published validator for a name.
func (r *Registry) Lookup(name string) (*Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[name]
	return v, ok
}

// Names returns the names of all published validators, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.validators))
	for name := range r.validators {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build normalizes and compiles the rules, merges with the previously
// published rule list when opts.Merge is set, and atomically publishes the
// assembled validator under opts.Name. Builds are all-or-nothing: on any
// error the previously published validator stays untouched.
//
// Merged rule sets dedup by canonical key. Relative order between previously
// published rules and newly supplied ones is unspecified; within one build
// call, clause order follows rule input order.
func (r *Registry) Build(raws []engine.RawRule, opts Options) (*Validator, error) {
	clauses, err := compiler.CompileRules(raws, r.guards, opts.Parallel)
	if err != nil {
		return nil, err
	}

	if opts.Merge {
		if prev, ok := r.Lookup(opts.Name); ok {
			prior, err := compiler.CompileNormalized(prev.Rules(), r.guards)
			if err != nil {
				return nil, err
			}
			clauses = append(prior, clauses...)
		}
	}
	clauses = dedupClauses(clauses)

	v := assemble(opts.Name, clauses, opts.Prefilter)

	r.mu.Lock()
	r.validators[opts.Name] = v
	r.mu.Unlock()
	return v, nil
}

// Drop removes a published validator.
func (r *Registry) Drop(name string) {
	r.mu.Lock()
	delete(r.validators, name)
	r.mu.Unlock()
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Build publishes into the process-wide registry.
func Build(raws []engine.RawRule, opts Options) (*Validator, error) {
	return Default.Build(raws, opts)
}

// Lookup reads from the process-wide registry.
func Lookup(name string) (*Validator, bool) {
	return Default.Lookup(name)
}
