package validator

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rulegate/rulegate/engine"
	"github.com/rulegate/rulegate/engine/compiler"
	"github.com/rulegate/rulegate/engine/guard"
)

func buildT(t *testing.T, r *Registry, raws []engine.RawRule, opts Options) *Validator {
	t.Helper()
	v, err := r.Build(raws, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return v
}

func TestEvaluate_PatternPlusConditions(t *testing.T) {
	r := NewRegistry()
	v := buildT(t, r, []engine.RawRule{{
		Matches:    map[string]any{"currency_pair": "EURUSD"},
		Conditions: map[string]any{"rate": map[string]any{"min": 1.0, "max": 2.0}},
	}}, NewOptions("fx"))

	out, ok := v.Evaluate(map[string]any{"currency_pair": "EURUSD", "rate": 1.5})
	if !ok {
		t.Fatal("in-range tick must validate")
	}
	want := map[string]any{"currency_pair": "EURUSD", "rate": 1.5}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}

	if _, ok := v.Evaluate(map[string]any{"currency_pair": "EURGBP", "rate": 1.5}); ok {
		t.Fatal("wrong pair must not validate")
	}
	if _, ok := v.Evaluate(map[string]any{"currency_pair": "EURUSD", "rate": 0.5}); ok {
		t.Fatal("out-of-range rate must not validate")
	}
}

func TestEvaluate_CustomGuards(t *testing.T) {
	r := NewRegistry()
	v := buildT(t, r, []engine.RawRule{{
		Matches: map[string]any{"foo": "bar", "num": engine.Capture("num")},
		Guards:  []any{"num >= 0 and (num <= 100 or num == 200)"},
	}}, NewOptions("guards"))

	out, ok := v.Evaluate(map[string]any{"foo": "bar", "num": 42, "bar": 42})
	if !ok || !reflect.DeepEqual(out, map[string]any{"foo": "bar", "num": 42}) {
		t.Fatalf("got %v ok=%v", out, ok)
	}
	if out, ok := v.Evaluate(map[string]any{"foo": "bar", "num": 200}); !ok || out["num"] != 200 {
		t.Fatalf("num=200 must validate, got %v ok=%v", out, ok)
	}
	if _, ok := v.Evaluate(map[string]any{"foo": "bar", "num": 101}); ok {
		t.Fatal("num=101 must not validate")
	}
	if _, ok := v.Evaluate(map[string]any{"foo": 42}); ok {
		t.Fatal("foo=42 must not validate")
	}
}

func TestEvaluate_ConditionsOnly(t *testing.T) {
	r := NewRegistry()
	v := buildT(t, r, []engine.RawRule{{
		Conditions: map[string]any{"num": map[string]any{"min": 0, "max": 100}},
	}}, NewOptions("range"))

	for num := -10; num <= 110; num++ {
		out, ok := v.Evaluate(map[string]any{"num": num})
		wantOK := num >= 0 && num <= 100
		if ok != wantOK {
			t.Fatalf("num=%d: ok=%v, want %v", num, ok, wantOK)
		}
		if ok && !reflect.DeepEqual(out, map[string]any{"num": num}) {
			t.Fatalf("num=%d: out=%v", num, out)
		}
	}
}

func TestBuild_UnknownGuardFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build([]engine.RawRule{{
		Conditions: map[string]any{"rate": map[string]any{"perfect": true}},
	}}, NewOptions("bad"))
	if err == nil {
		t.Fatal("expected UnknownGuardError")
	}
	var ug *guard.UnknownGuardError
	if !errors.As(err, &ug) {
		t.Fatalf("error %T, want UnknownGuardError", err)
	}
	// a failed build publishes nothing
	if _, ok := r.Lookup("bad"); ok {
		t.Fatal("failed build must not publish a validator")
	}
}

func TestBuild_FailureKeepsPriorValidator(t *testing.T) {
	r := NewRegistry()
	buildT(t, r, []engine.RawRule{{Matches: map[string]any{"ok": true}}}, NewOptions("v"))

	_, err := r.Build([]engine.RawRule{{}}, NewOptions("v"))
	if err == nil {
		t.Fatal("empty rule must fail the build")
	}
	v, ok := r.Lookup("v")
	if !ok {
		t.Fatal("prior validator must survive a failed rebuild")
	}
	if _, ok := v.Evaluate(map[string]any{"ok": true}); !ok {
		t.Fatal("prior validator must still work")
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	r := NewRegistry()
	v := buildT(t, r, []engine.RawRule{
		{Matches: map[string]any{"side": "buy"}, Conditions: map[string]any{"size": map[string]any{"min": 0}}},
		{Matches: map[string]any{"side": "buy"}},
	}, NewOptions("ordered"))

	// both clauses accept; the first one's projection (side+size) wins
	out, ok := v.Evaluate(map[string]any{"side": "buy", "size": 5})
	if !ok {
		t.Fatal("must validate")
	}
	if !reflect.DeepEqual(out, map[string]any{"side": "buy", "size": 5}) {
		t.Fatalf("first clause must win, got %v", out)
	}

	// only the second clause accepts when size is negative
	out, ok = v.Evaluate(map[string]any{"side": "buy", "size": -5})
	if !ok {
		t.Fatal("second clause must catch the record")
	}
	if !reflect.DeepEqual(out, map[string]any{"side": "buy"}) {
		t.Fatalf("second clause projection wrong: %v", out)
	}
}

func TestEvaluate_EmptyRuleSetAcceptsEverything(t *testing.T) {
	r := NewRegistry()
	v := buildT(t, r, nil, NewOptions("open"))

	rec := map[string]any{"anything": 1, "at": "all"}
	out, ok := v.Evaluate(rec)
	if !ok {
		t.Fatal("empty rule set must accept every record")
	}
	if !reflect.DeepEqual(out, rec) {
		t.Fatalf("record must come back unchanged, got %v", out)
	}
}

func TestEvaluate_NoMatchIsOrdinaryReturn(t *testing.T) {
	r := NewRegistry()
	v := buildT(t, r, []engine.RawRule{{Matches: map[string]any{"k": "v"}}}, NewOptions("strict"))

	out, ok := v.Evaluate(map[string]any{"other": 1})
	if ok || out != nil {
		t.Fatalf("non-match must be (nil, false), got %v %v", out, ok)
	}
}

func TestDeprecatedValidateAlias(t *testing.T) {
	r := NewRegistry()
	v := buildT(t, r, []engine.RawRule{{Matches: map[string]any{"k": "v"}}}, NewOptions("alias"))

	rec := map[string]any{"k": "v"}
	a, aok := v.Evaluate(rec)
	b, bok := v.Validate(rec)
	if aok != bok || !reflect.DeepEqual(a, b) {
		t.Fatal("Validate must behave exactly like Evaluate")
	}
}

func TestMerge_UnionWithoutDuplicates(t *testing.T) {
	r := NewRegistry()
	ruleA := engine.RawRule{Matches: map[string]any{"side": "buy"}}
	ruleB := engine.RawRule{Matches: map[string]any{"side": "sell"}}

	buildT(t, r, []engine.RawRule{ruleA}, Options{Name: "v"}) // merge=false
	v := buildT(t, r, []engine.RawRule{ruleB}, NewOptions("v"))

	if got := len(v.Rules()); got != 2 {
		t.Fatalf("merged validator must hold 2 rules, got %d", got)
	}
	if _, ok := v.Evaluate(map[string]any{"side": "buy"}); !ok {
		t.Fatal("rule A must survive the merge")
	}
	if _, ok := v.Evaluate(map[string]any{"side": "sell"}); !ok {
		t.Fatal("rule B must be added by the merge")
	}

	// resubmitting A must not duplicate it
	v = buildT(t, r, []engine.RawRule{ruleA}, NewOptions("v"))
	if got := len(v.Rules()); got != 2 {
		t.Fatalf("resubmitted rule must dedup, got %d rules", got)
	}
}

func TestMerge_FalseDiscardsPrior(t *testing.T) {
	r := NewRegistry()
	buildT(t, r, []engine.RawRule{{Matches: map[string]any{"side": "buy"}}}, Options{Name: "v"})
	v := buildT(t, r, []engine.RawRule{{Matches: map[string]any{"side": "sell"}}}, Options{Name: "v"})

	if got := len(v.Rules()); got != 1 {
		t.Fatalf("merge=false must discard prior rules, got %d", got)
	}
	if _, ok := v.Evaluate(map[string]any{"side": "buy"}); ok {
		t.Fatal("discarded rule must not match")
	}
}

func TestRules_RoundTrip(t *testing.T) {
	r := NewRegistry()
	v := buildT(t, r, []engine.RawRule{
		{Matches: map[string]any{"currency_pair": "EURUSD"}, Conditions: "rate >= 1.0 and rate <= 2.0"},
		{Matches: map[string]any{"foo": "bar"}, Guards: "num >= 0"},
	}, Options{Name: "orig"})

	// rebuild a second validator from the introspected normalized rules
	rebuilt := assembleFromRules(t, r, v.Rules())

	records := []map[string]any{
		{"currency_pair": "EURUSD", "rate": 1.5},
		{"currency_pair": "EURUSD", "rate": 2.5},
		{"foo": "bar", "num": 0},
		{"foo": "bar", "num": -1},
		{"foo": "bar"},
		{},
	}
	for _, rec := range records {
		a, aok := v.Evaluate(rec)
		b, bok := rebuilt.Evaluate(rec)
		if aok != bok || !reflect.DeepEqual(a, b) {
			t.Fatalf("round trip disagrees on %v: (%v,%v) vs (%v,%v)", rec, a, aok, b, bok)
		}
	}
}

// assembleFromRules rebuilds a validator from normalized rules via the merge
// path's compile entry point.
func assembleFromRules(t *testing.T, r *Registry, rules []engine.Rule) *Validator {
	t.Helper()
	clauses, err := compiler.CompileNormalized(rules, r.Guards())
	if err != nil {
		t.Fatal(err)
	}
	return assemble("rebuilt", dedupClauses(clauses), false)
}

func TestRegistry_LookupAndReplace(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("v"); ok {
		t.Fatal("lookup before publish must miss")
	}

	first := buildT(t, r, []engine.RawRule{{Matches: map[string]any{"v": 1}}}, Options{Name: "v"})
	second := buildT(t, r, []engine.RawRule{{Matches: map[string]any{"v": 2}}}, Options{Name: "v"})

	got, ok := r.Lookup("v")
	if !ok || got != second {
		t.Fatal("rebuild must replace the published instance")
	}
	// the replaced instance keeps working for holders of the old pointer
	if _, ok := first.Evaluate(map[string]any{"v": 1}); !ok {
		t.Fatal("stale validator must stay evaluable")
	}

	names := r.Names()
	if len(names) != 1 || names[0] != "v" {
		t.Fatalf("names = %v", names)
	}
	r.Drop("v")
	if _, ok := r.Lookup("v"); ok {
		t.Fatal("dropped validator must be gone")
	}
}

func TestPrefilter_DoesNotChangeOutcomes(t *testing.T) {
	raws := []engine.RawRule{
		{Matches: map[string]any{"currency_pair": "EURUSD"}, Conditions: "rate >= 1.0 and rate <= 2.0"},
		{Matches: map[string]any{"currency_pair": "EURGBP"}},
		{Conditions: map[string]any{"volume": map[string]any{"min": 1000}}}, // no literals
	}

	plain := buildT(t, NewRegistry(), raws, Options{Name: "v"})
	filtered := buildT(t, NewRegistry(), raws, Options{Name: "v", Prefilter: true})

	if filtered.PrefilterPatternCount() == 0 {
		t.Fatal("prefilter must index the literal patterns")
	}

	records := []map[string]any{
		{"currency_pair": "EURUSD", "rate": 1.5},
		{"currency_pair": "EURUSD", "rate": 9.9},
		{"currency_pair": "EURGBP", "rate": 1.5},
		{"currency_pair": "USDJPY", "volume": 5000},
		{"volume": 500},
		{"note": "mentions EURUSD in passing"},
		{},
	}
	for _, rec := range records {
		a, aok := plain.Evaluate(rec)
		b, bok := filtered.Evaluate(rec)
		if aok != bok || !reflect.DeepEqual(a, b) {
			t.Fatalf("prefilter changed the outcome for %v: (%v,%v) vs (%v,%v)", rec, a, aok, b, bok)
		}
	}
}

func TestParallelBuild_SameBehavior(t *testing.T) {
	raws := make([]engine.RawRule, 0, 30)
	for i := 0; i < 30; i++ {
		raws = append(raws, engine.RawRule{
			Matches:    map[string]any{"shard": i},
			Conditions: "num >= 0",
		})
	}
	seq := buildT(t, NewRegistry(), raws, Options{Name: "v"})
	par := buildT(t, NewRegistry(), raws, Options{Name: "v", Parallel: true})

	for i := 0; i < 30; i++ {
		rec := map[string]any{"shard": i, "num": 1}
		a, aok := seq.Evaluate(rec)
		b, bok := par.Evaluate(rec)
		if aok != bok || !reflect.DeepEqual(a, b) {
			t.Fatalf("parallel build disagrees on %v", rec)
		}
	}
}

func TestDefaultRegistryHelpers(t *testing.T) {
	name := "default-registry-test"
	defer Default.Drop(name)

	v, err := Build([]engine.RawRule{{Matches: map[string]any{"k": "v"}}}, Options{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := Lookup(name)
	if !ok || got != v {
		t.Fatal("package-level Build/Lookup must use the process registry")
	}
}
