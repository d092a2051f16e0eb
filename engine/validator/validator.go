// Package validator assembles compiled clauses into immutable validators,
// evaluates records against them in strict clause order, and publishes them
// in a process-wide name registry with replace-on-build semantics.
package validator

import (
	"github.com/rulegate/rulegate/engine"
	"github.com/rulegate/rulegate/engine/compiler"
)

// Options controls one build call.
type Options struct {
	// Name the validator publishes under.
	Name string
	// Merge unions the new rules with any rules already published under
	// Name, deduplicated by canonical key. Without it, prior rules are
	// discarded.
	Merge bool
	// Parallel fans per-rule compilation out across workers.
	Parallel bool
	// Prefilter builds a literal prefilter over the clause set.
	Prefilter bool
}

// NewOptions returns the default options for a name: merge on, sequential
// compile, prefilter off.
func NewOptions(name string) Options {
	return Options{Name: name, Merge: true}
}

// Validator is an ordered list of compiled clauses. It is immutable once
// built: concurrent Evaluate calls need no synchronization, and a rebuild
// replaces the published instance instead of mutating it.
type Validator struct {
	name      string
	clauses   []*compiler.Clause
	rules     []engine.Rule
	prefilter *literalPrefilter
	trivial   bool
}

// Name returns the name the validator was published under.
func (v *Validator) Name() string { return v.name }

// Rules returns the exact normalized rule collection this instance was built
// from, in clause order. Rebuilding from it without merge reproduces
// identical evaluate behavior.
func (v *Validator) Rules() []engine.Rule {
	out := make([]engine.Rule, len(v.rules))
	for i, r := range v.rules {
		out[i] = r.Clone()
	}
	return out
}

// ClauseCount returns the number of compiled clauses.
func (v *Validator) ClauseCount() int { return len(v.clauses) }

// PrefilterPatternCount returns the number of literal prefilter patterns.
func (v *Validator) PrefilterPatternCount() int {
	if v.prefilter == nil {
		return 0
	}
	return v.prefilter.patternCount()
}

// Evaluate matches a record against the clauses in compiled order. The first
// clause whose patterns match and whose predicate holds wins: Evaluate
// returns the record restricted to that clause's projection and stops. When
// no clause accepts, ok is false: a non-match is an ordinary outcome, never
// an error. A validator built from an empty rule collection accepts every
// record and returns it unchanged.
func (v *Validator) Evaluate(record map[string]any) (map[string]any, bool) {
	if v.trivial {
		out := make(map[string]any, len(record))
		for k, val := range record {
			out[k] = val
		}
		return out, true
	}

	skip := v.prefilter.clausesToSkip(record)
	for i, c := range v.clauses {
		if skip != nil && skip[i] {
			continue
		}
		if out, ok := c.Eval(record); ok {
			return out, true
		}
	}
	return nil, false
}

// Validate is the historical name for Evaluate.
//
// Deprecated: use Evaluate. Kept for callers of the old API; identical
// semantics, slated for removal.
func (v *Validator) Validate(record map[string]any) (map[string]any, bool) {
	return v.Evaluate(record)
}

// assemble builds a validator from compiled clauses. An empty clause set
// compiles to the trivial-accept validator: a rule set that says nothing
// rejects nothing.
func assemble(name string, clauses []*compiler.Clause, withPrefilter bool) *Validator {
	v := &Validator{
		name:    name,
		clauses: clauses,
		rules:   make([]engine.Rule, len(clauses)),
		trivial: len(clauses) == 0,
	}
	for i, c := range clauses {
		v.rules[i] = c.Rule()
	}
	if withPrefilter && !v.trivial {
		v.prefilter = newLiteralPrefilter(clauses)
	}
	return v
}

// dedupClauses keeps the first clause per canonical key, preserving order.
func dedupClauses(clauses []*compiler.Clause) []*compiler.Clause {
	seen := make(map[string]struct{}, len(clauses))
	out := make([]*compiler.Clause, 0, len(clauses))
	for _, c := range clauses {
		if _, ok := seen[c.Key()]; ok {
			continue
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	}
	return out
}
