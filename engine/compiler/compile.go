package compiler

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rulegate/rulegate/engine"
	"github.com/rulegate/rulegate/engine/guard"
)

// CompileRaw normalizes one raw rule and compiles it.
func CompileRaw(raw engine.RawRule, index int, reg *guard.Registry) (*Clause, error) {
	rule, err := Normalize(raw, index)
	if err != nil {
		return nil, err
	}
	return CompileRule(rule, reg)
}

// CompileRules compiles every raw rule in input order. With parallel set,
// per-rule work fans out across workers; rules are pure and share no state,
// and results land at their input index, so the clause set is identical to a
// sequential compile. Any failure aborts the whole build.
func CompileRules(raws []engine.RawRule, reg *guard.Registry, parallel bool) ([]*Clause, error) {
	if !parallel || len(raws) < 2 {
		out := make([]*Clause, 0, len(raws))
		for i, raw := range raws {
			c, err := CompileRaw(raw, i, reg)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}

	out := make([]*Clause, len(raws))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range raws {
		i := i
		g.Go(func() error {
			c, err := CompileRaw(raws[i], i, reg)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CompileNormalized compiles already-normalized rules, as the merge path
// does with the rule list recovered from a published validator.
func CompileNormalized(rules []engine.Rule, reg *guard.Registry) ([]*Clause, error) {
	out := make([]*Clause, 0, len(rules))
	for _, r := range rules {
		c, err := CompileRule(r, reg)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
