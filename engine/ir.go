package engine

import (
	"encoding/json"
)

// PatternKind discriminates how a field requirement is matched.
type PatternKind int

const (
	KindLiteral PatternKind = iota
	KindStructural
	KindCapture
)

func (k PatternKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindStructural:
		return "structural"
	case KindCapture:
		return "capture"
	default:
		return "unknown"
	}
}

// Pattern is a compiled match requirement for one field. Literal patterns
// compare by value equality, structural patterns constrain nested shape, and
// capture patterns always match and bind the value to Variable.
//
// Structural patterns come in two flavors: map shapes (Entries; an empty
// Entries set with no sequence means "any non-empty map") and sequence shapes
// (Elems as a fixed prefix, OpenTail allowing extra trailing elements).
// Nested entries and elements may themselves be captures.
type Pattern struct {
	Kind     PatternKind         `json:"kind"`
	Value    any                 `json:"value,omitempty"`    // KindLiteral
	Variable string              `json:"variable,omitempty"` // KindCapture
	Entries  map[string]*Pattern `json:"entries,omitempty"`  // KindStructural, map shape
	Elems    []*Pattern          `json:"elems,omitempty"`    // KindStructural, sequence shape
	IsSeq    bool                `json:"is_seq,omitempty"`
	OpenTail bool                `json:"open_tail,omitempty"`

	// Synthetic marks captures the normalizer introduced to bind a free
	// guard variable. They participate in matching but not in the output
	// projection.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Literal returns a literal pattern matching exactly v.
func Literal(v any) *Pattern { return &Pattern{Kind: KindLiteral, Value: v} }

// Capture returns a capturing wildcard binding the matched value to variable.
func Capture(variable string) *Pattern {
	return &Pattern{Kind: KindCapture, Variable: variable}
}

// NonEmptyMap returns a structural pattern matching any map with at least one key.
func NonEmptyMap() *Pattern { return &Pattern{Kind: KindStructural} }

// MapShape returns a structural pattern requiring the given entries.
func MapShape(entries map[string]*Pattern) *Pattern {
	return &Pattern{Kind: KindStructural, Entries: entries}
}

// SeqShape returns a structural sequence pattern with a fixed prefix.
func SeqShape(prefix []*Pattern, openTail bool) *Pattern {
	return &Pattern{Kind: KindStructural, IsSeq: true, Elems: prefix, OpenTail: openTail}
}

func (p *Pattern) Clone() *Pattern {
	if p == nil {
		return nil
	}
	cp := &Pattern{
		Kind:      p.Kind,
		Value:     p.Value,
		Variable:  p.Variable,
		IsSeq:     p.IsSeq,
		OpenTail:  p.OpenTail,
		Synthetic: p.Synthetic,
	}
	if p.Entries != nil {
		cp.Entries = make(map[string]*Pattern, len(p.Entries))
		for k, v := range p.Entries {
			cp.Entries[k] = v.Clone()
		}
	}
	if p.Elems != nil {
		cp.Elems = make([]*Pattern, len(p.Elems))
		for i, e := range p.Elems {
			cp.Elems[i] = e.Clone()
		}
	}
	return cp
}

// GuardSpec maps a registered guard name to its parameter, e.g.
// {"min": 0, "max": 100}.
type GuardSpec map[string]any

// BoolExpr is a custom guard expression parsed once at build time. Type
// mismatches during evaluation yield false, never an error.
type BoolExpr interface {
	Eval(env map[string]any) bool
	Vars() []string
	String() string
}

// Guard pairs the original expression text with its parsed form. Source is
// what participates in the rule's canonical key.
type Guard struct {
	Source string   `json:"source"`
	Expr   BoolExpr `json:"-"`
}

// RawRule is one user-declared alternative as it arrives from a caller or a
// rule document, before normalization. Matches values are either *Pattern
// (structural output of a pattern-literal parser) or plain values treated as
// literals. Conditions is a field->GuardSpec map or free condition text.
// Guards is a single expression, a list of expressions, or a name->expression
// map.
type RawRule struct {
	Matches    map[string]any `json:"matches,omitempty" yaml:"matches,omitempty"`
	Conditions any            `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Guards     any            `json:"guards,omitempty" yaml:"guards,omitempty"`
}

// Rule is the fully normalized form: every matches entry is a *Pattern,
// conditions are field->GuardSpec maps, guards are named and parsed. Output
// holds the user-declared projection fields in sorted order.
type Rule struct {
	Matches    map[string]*Pattern  `json:"matches,omitempty"`
	Conditions map[string]GuardSpec `json:"conditions,omitempty"`
	Guards     map[string]Guard     `json:"guards,omitempty"`
	Output     []string             `json:"-"`
}

func (r Rule) Clone() Rule {
	cp := Rule{
		Matches:    make(map[string]*Pattern, len(r.Matches)),
		Conditions: make(map[string]GuardSpec, len(r.Conditions)),
		Guards:     make(map[string]Guard, len(r.Guards)),
		Output:     append([]string(nil), r.Output...),
	}
	for k, v := range r.Matches {
		cp.Matches[k] = v.Clone()
	}
	for k, v := range r.Conditions {
		spec := make(GuardSpec, len(v))
		for gk, gv := range v {
			spec[gk] = gv
		}
		cp.Conditions[k] = spec
	}
	for k, v := range r.Guards {
		cp.Guards[k] = v
	}
	return cp
}

// Key returns the canonical dedup key: a deterministic serialization of the
// normalized rule. Two rules with equal keys are merged as one during
// rebuilds. json.Marshal writes map keys in sorted order, which makes the
// key order-independent.
func (r Rule) Key() string {
	type view struct {
		Matches    map[string]*Pattern  `json:"matches,omitempty"`
		Conditions map[string]GuardSpec `json:"conditions,omitempty"`
		Guards     map[string]string    `json:"guards,omitempty"`
	}
	v := view{Matches: r.Matches, Conditions: r.Conditions}
	if len(r.Guards) > 0 {
		v.Guards = make(map[string]string, len(r.Guards))
		for name, g := range r.Guards {
			v.Guards[name] = g.Source
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}
