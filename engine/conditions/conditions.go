// Package conditions parses textual condition expressions into per-field
// guard specifications. Only conjunctions of relational comparisons are
// accepted: "num >= 0 and num <= 100" becomes {num: {min: 0, max: 100}}.
//
// A top-level "or" is rejected. Custom guard expressions do support "or";
// conditions deliberately do not, and the asymmetry is part of the contract.
package conditions

import (
	"github.com/rulegate/rulegate/engine"
	"github.com/rulegate/rulegate/engine/expr"
)

// Parse converts condition text into a field -> GuardSpec map. Multiple
// comparisons on the same field merge into one spec. Operator mapping:
//
//	>= min    <= max    < less_than    > greater_than
//	== / = eq    in one_of    not in not_one_of
func Parse(input string) (map[string]engine.GuardSpec, error) {
	ast, err := expr.Parse(input)
	if err != nil {
		return nil, err
	}
	out := make(map[string]engine.GuardSpec)
	if err := collect(ast, out); err != nil {
		return nil, err
	}
	return out, nil
}

func collect(e expr.Expr, out map[string]engine.GuardSpec) error {
	switch t := e.(type) {
	case *expr.And:
		if err := collect(t.L, out); err != nil {
			return err
		}
		return collect(t.R, out)
	case *expr.Or:
		return &expr.UnsupportedExpressionError{Construct: "or"}
	case *expr.Cmp:
		return collectCmp(t, out)
	default:
		return &expr.UnsupportedExpressionError{Construct: e.String()}
	}
}

func collectCmp(c *expr.Cmp, out map[string]engine.GuardSpec) error {
	if !c.L.IsVar || c.R.IsVar {
		return &expr.UnsupportedExpressionError{Construct: c.String()}
	}
	name, ok := guardName(c.Op)
	if !ok {
		return &expr.UnsupportedExpressionError{Construct: c.Op.String()}
	}
	spec, ok := out[c.L.Var]
	if !ok {
		spec = make(engine.GuardSpec)
		out[c.L.Var] = spec
	}
	spec[name] = c.R.Lit
	return nil
}

func guardName(op expr.CmpOp) (string, bool) {
	switch op {
	case expr.OpGte:
		return "min", true
	case expr.OpLte:
		return "max", true
	case expr.OpLt:
		return "less_than", true
	case expr.OpGt:
		return "greater_than", true
	case expr.OpEq:
		return "eq", true
	case expr.OpIn:
		return "one_of", true
	case expr.OpNotIn:
		return "not_one_of", true
	default:
		return "", false
	}
}
