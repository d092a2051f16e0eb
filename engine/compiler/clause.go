package compiler

import (
	"sort"

	"github.com/rulegate/rulegate/engine"
	"github.com/rulegate/rulegate/engine/guard"
	"github.com/rulegate/rulegate/engine/pattern"
)

// Clause is one compiled rule: field matchers, a predicate conjunction, and
// the output projection. An empty conjunction accepts as soon as every
// pattern matches.
type Clause struct {
	matchers []*pattern.Matcher
	preds    []guard.Predicate
	guards   []engine.BoolExpr
	output   []string
	rule     engine.Rule
	key      string
}

// CompileRule turns a normalized rule into an executable clause. The field
// set is the union of matches keys and condition keys; condition fields
// without an explicit pattern get an implicit capturing wildcard. Fails with
// an UnknownGuardError when a GuardSpec names an unregistered predicate.
func CompileRule(rule engine.Rule, reg *guard.Registry) (*Clause, error) {
	fields := make(map[string]*engine.Pattern, len(rule.Matches)+len(rule.Conditions))
	for field, p := range rule.Matches {
		fields[field] = p
	}
	for field := range rule.Conditions {
		if _, ok := fields[field]; !ok {
			fields[field] = nil // implicit capture, see pattern.Compile
		}
	}

	// Deterministic matcher and predicate order: sorted field names, then
	// sorted guard spec names within a field.
	fieldNames := make([]string, 0, len(fields))
	for field := range fields {
		fieldNames = append(fieldNames, field)
	}
	sort.Strings(fieldNames)

	c := &Clause{
		matchers: make([]*pattern.Matcher, 0, len(fieldNames)),
		output:   rule.Output,
		rule:     rule,
		key:      rule.Key(),
	}
	for _, field := range fieldNames {
		c.matchers = append(c.matchers, pattern.Compile(field, fields[field]))
	}

	for _, field := range fieldNames {
		spec, ok := rule.Conditions[field]
		if !ok {
			continue
		}
		names := make([]string, 0, len(spec))
		for name := range spec {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			pred, err := reg.Build(name, field, spec[name])
			if err != nil {
				return nil, err
			}
			c.preds = append(c.preds, pred)
		}
	}

	guardNames := make([]string, 0, len(rule.Guards))
	for name := range rule.Guards {
		guardNames = append(guardNames, name)
	}
	sort.Strings(guardNames)
	for _, name := range guardNames {
		c.guards = append(c.guards, rule.Guards[name].Expr)
	}

	return c, nil
}

// Eval matches the record against the clause. On success it returns the
// record restricted to the clause's projection fields; the binding
// environment itself stays internal.
func (c *Clause) Eval(record map[string]any) (map[string]any, bool) {
	env := make(map[string]any, len(c.matchers)*2)
	for _, m := range c.matchers {
		bindings, ok := m.Match(record)
		if !ok {
			return nil, false
		}
		for k, v := range bindings {
			env[k] = v
		}
	}
	for _, pred := range c.preds {
		if !pred(env) {
			return nil, false
		}
	}
	for _, g := range c.guards {
		if !g.Eval(env) {
			return nil, false
		}
	}

	out := make(map[string]any, len(c.output))
	for _, field := range c.output {
		if v, ok := record[field]; ok {
			out[field] = v
		}
	}
	return out, true
}

// Rule returns the normalized rule this clause was compiled from.
func (c *Clause) Rule() engine.Rule { return c.rule }

// Key returns the rule's canonical dedup key.
func (c *Clause) Key() string { return c.key }

// Output returns the projection fields.
func (c *Clause) Output() []string { return append([]string(nil), c.output...) }

// LiteralStrings returns every string an input record must contain verbatim
// for this clause to match: string values of literal patterns, including
// literal leaves nested in structural patterns. Used by the prefilter.
func (c *Clause) LiteralStrings() []string {
	var out []string
	for _, m := range c.matchers {
		out = appendLiterals(out, m.Pattern())
	}
	return out
}

func appendLiterals(out []string, p *engine.Pattern) []string {
	if p == nil {
		return out
	}
	switch p.Kind {
	case engine.KindLiteral:
		if s, ok := p.Value.(string); ok && s != "" {
			out = append(out, s)
		}
	case engine.KindStructural:
		for _, sub := range p.Entries {
			out = appendLiterals(out, sub)
		}
		for _, sub := range p.Elems {
			out = appendLiterals(out, sub)
		}
	}
	return out
}
