// Package pattern compiles per-field match requirements into matchers that
// produce a binding environment on success. A failed match leaks no partial
// bindings: nested captures are staged in a scratch environment and merged
// only when the whole pattern holds.
package pattern

import (
	"github.com/rulegate/rulegate/engine"
)

// Matcher is one compiled field requirement.
type Matcher struct {
	field string
	pat   *engine.Pattern
}

// Compile builds a matcher for a field. A nil pattern compiles to a
// capturing wildcard bound under the field name, which is what implicit
// condition and guard fields need.
func Compile(field string, p *engine.Pattern) *Matcher {
	if p == nil {
		p = engine.Capture(field)
	}
	return &Matcher{field: field, pat: p}
}

// Field returns the record field this matcher inspects.
func (m *Matcher) Field() string { return m.field }

// Pattern returns the underlying pattern.
func (m *Matcher) Pattern() *engine.Pattern { return m.pat }

// Match looks up the field in the record and matches its value. On success
// the returned bindings hold the field name plus every captured variable.
// An absent field never matches: conditions and guards need a value to bind.
func (m *Matcher) Match(record map[string]any) (map[string]any, bool) {
	value, ok := record[m.field]
	if !ok {
		return nil, false
	}
	scratch := make(map[string]any, 2)
	if !matchValue(m.pat, value, scratch) {
		return nil, false
	}
	scratch[m.field] = value
	return scratch, true
}

func matchValue(p *engine.Pattern, value any, env map[string]any) bool {
	switch p.Kind {
	case engine.KindLiteral:
		return engine.Equal(value, p.Value)
	case engine.KindCapture:
		env[p.Variable] = value
		return true
	case engine.KindStructural:
		if p.IsSeq {
			return matchSeq(p, value, env)
		}
		return matchMap(p, value, env)
	default:
		return false
	}
}

func matchMap(p *engine.Pattern, value any, env map[string]any) bool {
	m, ok := value.(map[string]any)
	if !ok {
		return false
	}
	if len(p.Entries) == 0 {
		// shape "any non-empty map"
		return len(m) > 0
	}
	for key, sub := range p.Entries {
		v, ok := m[key]
		if !ok {
			return false
		}
		if !matchValue(sub, v, env) {
			return false
		}
	}
	return true
}

func matchSeq(p *engine.Pattern, value any, env map[string]any) bool {
	list, ok := engine.AsList(value)
	if !ok {
		return false
	}
	if p.OpenTail {
		if len(list) < len(p.Elems) {
			return false
		}
	} else if len(list) != len(p.Elems) {
		return false
	}
	for i, sub := range p.Elems {
		if !matchValue(sub, list[i], env) {
			return false
		}
	}
	return true
}
