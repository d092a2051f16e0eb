package engine

import "unicode/utf8"

// Records decoded from JSON or YAML carry numbers as assorted int/uint/float
// types. The helpers below coerce them for comparison so that 1, int64(1)
// and 1.0 are the same value to a rule.

// AsNumber reports v as a float64 if it is numeric.
func AsNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// AsString reports v as a string if it is string-like.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsList reports v as a []any if it is list-like.
func AsList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// StringLength returns the character length of a string-like value.
func StringLength(v any) (int, bool) {
	s, ok := AsString(v)
	if !ok {
		return 0, false
	}
	return utf8.RuneCountInString(s), true
}

// Equal compares two values loosely: numbers compare by numeric value across
// int/float representations, everything else by ==. Maps and slices are
// never equal under Equal; structural comparison belongs to patterns.
func Equal(a, b any) bool {
	if fa, ok := AsNumber(a); ok {
		fb, ok := AsNumber(b)
		return ok && fa == fb
	}
	switch a.(type) {
	case string, bool, nil:
		return a == b
	default:
		return false
	}
}
