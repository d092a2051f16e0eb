// Package compiler normalizes raw rules and compiles them into executable
// clauses: a set of field matchers, a conjunction of predicates, and an
// output projection.
package compiler

import (
	"fmt"
	"sort"

	"github.com/rulegate/rulegate/engine"
	"github.com/rulegate/rulegate/engine/conditions"
	"github.com/rulegate/rulegate/engine/expr"
)

// EmptyRuleError reports a rule that, after defaulting, declares no matches,
// no conditions and no guards.
type EmptyRuleError struct{ Index int }

func (e *EmptyRuleError) Error() string {
	return fmt.Sprintf("empty rule at index %d: needs at least one of matches, conditions, guards", e.Index)
}

// Normalize validates and defaults a raw rule:
//
//   - matches values become *engine.Pattern (plain values turn into literals)
//   - free-text conditions are parsed into field -> GuardSpec maps
//   - guards arrive as one expression, a list, or a name -> expression map
//     and normalize to named parsed expressions (unnamed ones become
//     guard_1, guard_2, ... in declaration order)
//   - every free guard variable without a matches entry gets a synthetic
//     capturing wildcard so the variable is bound at evaluation time
//
// The index is only used for error reporting.
func Normalize(raw engine.RawRule, index int) (engine.Rule, error) {
	rule := engine.Rule{
		Matches:    make(map[string]*engine.Pattern, len(raw.Matches)),
		Conditions: make(map[string]engine.GuardSpec),
		Guards:     make(map[string]engine.Guard),
	}

	for field, v := range raw.Matches {
		rule.Matches[field] = toPattern(v)
	}

	if err := normalizeConditions(raw.Conditions, &rule); err != nil {
		return engine.Rule{}, err
	}
	if err := normalizeGuards(raw.Guards, &rule); err != nil {
		return engine.Rule{}, err
	}

	if len(rule.Matches) == 0 && len(rule.Conditions) == 0 && len(rule.Guards) == 0 {
		return engine.Rule{}, &EmptyRuleError{Index: index}
	}

	// The output projection is exactly the user-declared fields. Compute it
	// before synthesizing captures for guard variables.
	rule.Output = declaredFields(rule)

	for _, g := range rule.Guards {
		for _, v := range g.Expr.Vars() {
			if _, ok := rule.Matches[v]; !ok {
				p := engine.Capture(v)
				p.Synthetic = true
				rule.Matches[v] = p
			}
		}
	}

	return rule, nil
}

func toPattern(v any) *engine.Pattern {
	switch t := v.(type) {
	case *engine.Pattern:
		return t.Clone()
	case engine.Pattern:
		return t.Clone()
	default:
		return engine.Literal(v)
	}
}

func normalizeConditions(raw any, rule *engine.Rule) error {
	switch t := raw.(type) {
	case nil:
	case string:
		specs, err := conditions.Parse(t)
		if err != nil {
			return err
		}
		rule.Conditions = specs
	case map[string]engine.GuardSpec:
		for field, spec := range t {
			rule.Conditions[field] = spec
		}
	case map[string]map[string]any:
		for field, spec := range t {
			rule.Conditions[field] = engine.GuardSpec(spec)
		}
	case map[string]any:
		for field, v := range t {
			spec, ok := v.(map[string]any)
			if !ok {
				return &expr.UnsupportedExpressionError{
					Construct: fmt.Sprintf("condition for %s must be a guard map or text", field),
				}
			}
			rule.Conditions[field] = engine.GuardSpec(spec)
		}
	default:
		return &expr.UnsupportedExpressionError{
			Construct: fmt.Sprintf("conditions of type %T", raw),
		}
	}
	return nil
}

func normalizeGuards(raw any, rule *engine.Rule) error {
	addAuto := func(sources []string) error {
		for i, src := range sources {
			ast, err := expr.Parse(src)
			if err != nil {
				return err
			}
			rule.Guards[fmt.Sprintf("guard_%d", i+1)] = engine.Guard{Source: src, Expr: ast}
		}
		return nil
	}

	switch t := raw.(type) {
	case nil:
	case string:
		return addAuto([]string{t})
	case []string:
		return addAuto(t)
	case []any:
		sources := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return &expr.UnsupportedExpressionError{
					Construct: fmt.Sprintf("guard of type %T", it),
				}
			}
			sources = append(sources, s)
		}
		return addAuto(sources)
	case map[string]string:
		for name, src := range t {
			ast, err := expr.Parse(src)
			if err != nil {
				return err
			}
			rule.Guards[name] = engine.Guard{Source: src, Expr: ast}
		}
	case map[string]any:
		for name, v := range t {
			src, ok := v.(string)
			if !ok {
				return &expr.UnsupportedExpressionError{
					Construct: fmt.Sprintf("guard %s of type %T", name, v),
				}
			}
			ast, err := expr.Parse(src)
			if err != nil {
				return err
			}
			rule.Guards[name] = engine.Guard{Source: src, Expr: ast}
		}
	default:
		return &expr.UnsupportedExpressionError{
			Construct: fmt.Sprintf("guards of type %T", raw),
		}
	}
	return nil
}

// declaredFields returns the sorted union of non-synthetic matches keys and
// condition keys.
func declaredFields(rule engine.Rule) []string {
	seen := make(map[string]struct{}, len(rule.Matches)+len(rule.Conditions))
	for field, p := range rule.Matches {
		if !p.Synthetic {
			seen[field] = struct{}{}
		}
	}
	for field := range rule.Conditions {
		seen[field] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for field := range seen {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}
