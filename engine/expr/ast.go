package expr

import (
	"fmt"
	"strings"

	"github.com/rulegate/rulegate/engine"
)

// Expr is a parsed guard expression. Eval never returns an error: a missing
// variable or an operand of the wrong type makes the expression false, so a
// data-shape mismatch is indistinguishable from an ordinary non-match.
type Expr interface {
	Eval(env map[string]any) bool
	Vars() []string
	String() string
}

// CmpOp is the fixed relational operator set.
type CmpOp int

const (
	OpEq CmpOp = iota
	OpGte
	OpLte
	OpLt
	OpGt
	OpIn
	OpNotIn
)

func (op CmpOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpIn:
		return "in"
	case OpNotIn:
		return "not in"
	default:
		return fmt.Sprintf("CmpOp(%d)", int(op))
	}
}

// Operand is either a variable reference or a literal value.
type Operand struct {
	Var   string
	IsVar bool
	Lit   any
}

func (o Operand) resolve(env map[string]any) (any, bool) {
	if !o.IsVar {
		return o.Lit, true
	}
	v, ok := env[o.Var]
	return v, ok
}

func (o Operand) String() string {
	if o.IsVar {
		return o.Var
	}
	switch t := o.Lit.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Operand{Lit: e}.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}

// Cmp is a single relational comparison.
type Cmp struct {
	Op CmpOp
	L  Operand
	R  Operand
}

func (c *Cmp) Eval(env map[string]any) bool {
	lv, ok := c.L.resolve(env)
	if !ok {
		return false
	}
	rv, ok := c.R.resolve(env)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return engine.Equal(lv, rv)
	case OpIn, OpNotIn:
		list, ok := engine.AsList(rv)
		if !ok {
			return false
		}
		found := false
		for _, e := range list {
			if engine.Equal(lv, e) {
				found = true
				break
			}
		}
		if c.Op == OpIn {
			return found
		}
		return !found
	default:
		lf, ok := engine.AsNumber(lv)
		if !ok {
			return false
		}
		rf, ok := engine.AsNumber(rv)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGte:
			return lf >= rf
		case OpLte:
			return lf <= rf
		case OpLt:
			return lf < rf
		case OpGt:
			return lf > rf
		}
		return false
	}
}

func (c *Cmp) Vars() []string {
	var out []string
	if c.L.IsVar {
		out = append(out, c.L.Var)
	}
	if c.R.IsVar && (!c.L.IsVar || c.R.Var != c.L.Var) {
		out = append(out, c.R.Var)
	}
	return out
}

func (c *Cmp) String() string {
	return c.L.String() + " " + c.Op.String() + " " + c.R.String()
}

// And is a logical conjunction.
type And struct{ L, R Expr }

func (a *And) Eval(env map[string]any) bool { return a.L.Eval(env) && a.R.Eval(env) }
func (a *And) Vars() []string               { return mergeVars(a.L, a.R) }
func (a *And) String() string               { return "(" + a.L.String() + " and " + a.R.String() + ")" }

// Or is a logical disjunction.
type Or struct{ L, R Expr }

func (o *Or) Eval(env map[string]any) bool { return o.L.Eval(env) || o.R.Eval(env) }
func (o *Or) Vars() []string               { return mergeVars(o.L, o.R) }
func (o *Or) String() string               { return "(" + o.L.String() + " or " + o.R.String() + ")" }

func mergeVars(l, r Expr) []string {
	out := l.Vars()
	seen := make(map[string]struct{}, len(out))
	for _, v := range out {
		seen[v] = struct{}{}
	}
	for _, v := range r.Vars() {
		if _, ok := seen[v]; !ok {
			out = append(out, v)
			seen[v] = struct{}{}
		}
	}
	return out
}
