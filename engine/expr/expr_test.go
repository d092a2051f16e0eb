package expr

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, input string) Expr {
	t.Helper()
	e, err := Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return e
}

func TestParseAndEval_Comparisons(t *testing.T) {
	cases := []struct {
		input string
		env   map[string]any
		want  bool
	}{
		{"num >= 0", map[string]any{"num": 0}, true},
		{"num >= 0", map[string]any{"num": -1}, false},
		{"num <= 100", map[string]any{"num": 100}, true},
		{"num <= 100", map[string]any{"num": 100.5}, false},
		{"num < 10", map[string]any{"num": 9.99}, true},
		{"num > 10", map[string]any{"num": 10}, false},
		{"num == 200", map[string]any{"num": 200}, true},
		{"num = 200", map[string]any{"num": 200.0}, true},
		{"name == 'bob'", map[string]any{"name": "bob"}, true},
		{"name == 'bob'", map[string]any{"name": "alice"}, false},
		{"flag == true", map[string]any{"flag": true}, true},
		{"num in [1, 2, 3]", map[string]any{"num": 2}, true},
		{"num in [1, 2, 3]", map[string]any{"num": 4}, false},
		{"side not in ['buy', 'sell']", map[string]any{"side": "hold"}, true},
		{"side not in ['buy', 'sell']", map[string]any{"side": "buy"}, false},
		{"num >= -5", map[string]any{"num": -3}, true},
	}
	for _, tc := range cases {
		e := mustParse(t, tc.input)
		if got := e.Eval(tc.env); got != tc.want {
			t.Errorf("%q with %v: got %v, want %v", tc.input, tc.env, got, tc.want)
		}
	}
}

func TestParseAndEval_Logic(t *testing.T) {
	// the canonical guard from the rule docs
	e := mustParse(t, "num >= 0 and (num <= 100 or num == 200)")

	cases := []struct {
		num  any
		want bool
	}{
		{42, true},
		{0, true},
		{100, true},
		{200, true},
		{101, false},
		{199, false},
		{-1, false},
	}
	for _, tc := range cases {
		if got := e.Eval(map[string]any{"num": tc.num}); got != tc.want {
			t.Errorf("num=%v: got %v, want %v", tc.num, got, tc.want)
		}
	}
}

func TestEval_MissingVariableIsFalse(t *testing.T) {
	e := mustParse(t, "num >= 0")
	if e.Eval(map[string]any{}) {
		t.Fatal("missing variable must not match")
	}
}

func TestEval_TypeMismatchIsFalse(t *testing.T) {
	cases := []struct {
		input string
		env   map[string]any
	}{
		{"num >= 0", map[string]any{"num": "fast"}},
		{"num > 1", map[string]any{"num": []any{1}}},
		{"num in [1, 2]", map[string]any{"num": map[string]any{}}},
	}
	for _, tc := range cases {
		e := mustParse(t, tc.input)
		if e.Eval(tc.env) {
			t.Errorf("%q with %v: type mismatch must evaluate to false", tc.input, tc.env)
		}
	}
}

func TestVars(t *testing.T) {
	e := mustParse(t, "num >= 0 and (rate <= 2.0 or num == 200)")
	got := e.Vars()
	want := []string{"num", "rate"}
	if len(got) != len(want) {
		t.Fatalf("Vars() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Vars() = %v, want %v", got, want)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	inputs := []string{
		"",
		"num >=",
		"num ! 5",
		"(num >= 0",
		"num >= 0 and",
		"num not 5",
		"num in [1, 2",
		"num in [x]",
		"'unterminated",
		"num >= 0 extra",
	}
	for _, input := range inputs {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q): expected error", input)
			continue
		}
		var ue *UnsupportedExpressionError
		if !errors.As(err, &ue) {
			t.Errorf("Parse(%q): error %T, want UnsupportedExpressionError", input, err)
		}
	}
}

func TestString_RoundTrip(t *testing.T) {
	e := mustParse(t, "num >= 0 and (num <= 100 or num == 200)")
	again := mustParse(t, e.String())
	for _, num := range []int{-1, 0, 42, 100, 101, 200, 201} {
		env := map[string]any{"num": num}
		if e.Eval(env) != again.Eval(env) {
			t.Fatalf("reparsed %q disagrees at num=%d", e.String(), num)
		}
	}
}
