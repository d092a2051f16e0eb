package guard

import (
	"github.com/rulegate/rulegate/engine"
)

// RegisterDefaults installs the built-in guard set:
//
//	min, max, less_than, greater_than, eq   numeric comparisons
//	one_of, not_one_of                      membership in a fixed list
//	min_length, max_length                  character length of a string
//	min_count, max_count                    element count of a list
func RegisterDefaults(r *Registry) {
	r.Register("min", numericGuard(func(v, p float64) bool { return v >= p }))
	r.Register("max", numericGuard(func(v, p float64) bool { return v <= p }))
	r.Register("less_than", numericGuard(func(v, p float64) bool { return v < p }))
	r.Register("greater_than", numericGuard(func(v, p float64) bool { return v > p }))
	r.Register("eq", numericGuard(func(v, p float64) bool { return v == p }))
	r.Register("one_of", membershipGuard(true))
	r.Register("not_one_of", membershipGuard(false))
	r.Register("min_length", lengthGuard(engine.StringLength, func(n, p int) bool { return n >= p }))
	r.Register("max_length", lengthGuard(engine.StringLength, func(n, p int) bool { return n <= p }))
	r.Register("min_count", lengthGuard(listLength, func(n, p int) bool { return n >= p }))
	r.Register("max_count", lengthGuard(listLength, func(n, p int) bool { return n <= p }))
}

func numericGuard(cmp func(v, p float64) bool) BuilderFn {
	return func(variable string, param any) Predicate {
		p, pok := engine.AsNumber(param)
		return func(env map[string]any) bool {
			if !pok {
				return false
			}
			raw, ok := env[variable]
			if !ok {
				return false
			}
			v, ok := engine.AsNumber(raw)
			if !ok {
				return false
			}
			return cmp(v, p)
		}
	}
}

func membershipGuard(want bool) BuilderFn {
	return func(variable string, param any) Predicate {
		list, pok := engine.AsList(param)
		return func(env map[string]any) bool {
			if !pok {
				return false
			}
			raw, ok := env[variable]
			if !ok {
				return false
			}
			for _, e := range list {
				if engine.Equal(raw, e) {
					return want
				}
			}
			return !want
		}
	}
}

func listLength(v any) (int, bool) {
	list, ok := engine.AsList(v)
	if !ok {
		return 0, false
	}
	return len(list), true
}

func lengthGuard(length func(any) (int, bool), cmp func(n, p int) bool) BuilderFn {
	return func(variable string, param any) Predicate {
		pf, pok := engine.AsNumber(param)
		return func(env map[string]any) bool {
			if !pok {
				return false
			}
			raw, ok := env[variable]
			if !ok {
				return false
			}
			n, ok := length(raw)
			if !ok {
				return false
			}
			return cmp(n, int(pf))
		}
	}
}
