// Package ruledef loads validation-rule documents from YAML and translates
// their pattern-literal syntax into the structural patterns the engine
// consumes. The engine core never sees this syntax; it is the textual
// boundary in front of the compiler.
//
// Pattern-literal conventions inside a matches block:
//
//	rate: "$r"                captures the field into variable r ("$" alone
//	                          captures under the field's own name)
//	book: {}                  any non-empty map
//	book: {venue: LSE}        map shape with required entries (recursive)
//	legs: [spot, "$second"]   sequence of exactly these elements
//	legs: [spot, "..."]       sequence with this prefix and an open tail
//
// Every other scalar is an exact-match literal. conditions and guards pass
// through untranslated; the compiler owns their interpretation.
package ruledef

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rulegate/rulegate/engine"
)

const openTailMarker = "..."

// Document is one named rule set as it appears in a YAML stream. A stream
// may hold multiple documents; documents without a name belong to "default".
type Document struct {
	Name  string           `yaml:"name"`
	Rules []engine.RawRule `yaml:"rules"`
}

// Load decodes a YAML stream of rule documents and translates every matches
// entry into its pattern form.
func Load(b []byte) ([]Document, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	var docs []Document
	for {
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode rule document: %w", err)
		}
		if len(doc.Rules) == 0 {
			continue
		}
		if doc.Name == "" {
			doc.Name = "default"
		}
		for i := range doc.Rules {
			translated, err := translateMatches(doc.Rules[i].Matches)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			doc.Rules[i].Matches = translated
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, errors.New("no rule documents in input")
	}
	return docs, nil
}

// LoadDir walks a directory recursively and loads every .yml/.yaml file,
// grouping rules by document name. Unreadable or malformed files are skipped
/// and counted, not fatal: one bad file must not take down a reload.
func LoadDir(root string) (map[string][]engine.RawRule, int, error) {
	out := make(map[string][]engine.RawRule)
	skipped := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(p) {
			return nil
		}
		b, rerr := os.ReadFile(p)
		if rerr != nil {
			skipped++
			return nil
		}
		docs, rerr := Load(b)
		if rerr != nil {
			skipped++
			return nil
		}
		for _, doc := range docs {
			out[doc.Name] = append(out[doc.Name], doc.Rules...)
		}
		return nil
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, skipped, nil
}

func isYAML(p string) bool {
	l := strings.ToLower(p)
	return strings.HasSuffix(l, ".yml") || strings.HasSuffix(l, ".yaml")
}

func translateMatches(matches map[string]any) (map[string]any, error) {
	if matches == nil {
		return nil, nil
	}
	out := make(map[string]any, len(matches))
	for field, v := range matches {
		p, err := translateValue(field, v)
		if err != nil {
			return nil, err
		}
		out[field] = p
	}
	return out, nil
}

// translateValue turns one matches value into a pattern or leaves it as a
// plain literal for the normalizer to wrap.
func translateValue(field string, v any) (any, error) {
	switch t := v.(type) {
	case string:
		if capture, ok := captureName(field, t); ok {
			return engine.Capture(capture), nil
		}
		return t, nil
	case map[string]any:
		if len(t) == 0 {
			return engine.NonEmptyMap(), nil
		}
		entries := make(map[string]*engine.Pattern, len(t))
		for key, sub := range t {
			sp, err := translatePattern(key, sub)
			if err != nil {
				return nil, err
			}
			entries[key] = sp
		}
		return engine.MapShape(entries), nil
	case []any:
		open := false
		elems := t
		if n := len(t); n > 0 {
			if s, ok := t[n-1].(string); ok && s == openTailMarker {
				open = true
				elems = t[:n-1]
			}
		}
		prefix := make([]*engine.Pattern, 0, len(elems))
		for i, sub := range elems {
			sp, err := translatePattern(fmt.Sprintf("%s[%d]", field, i), sub)
			if err != nil {
				return nil, err
			}
			prefix = append(prefix, sp)
		}
		return engine.SeqShape(prefix, open), nil
	default:
		return v, nil
	}
}

// translatePattern is translateValue for nested positions, where the result
// must be a *engine.Pattern (scalars become literal patterns).
func translatePattern(field string, v any) (*engine.Pattern, error) {
	translated, err := translateValue(field, v)
	if err != nil {
		return nil, err
	}
	switch t := translated.(type) {
	case *engine.Pattern:
		return t, nil
	default:
		return engine.Literal(t), nil
	}
}

// captureName interprets the "$" capture syntax. "$" binds under the field
// name itself, "$rate" binds under rate. A field named like "a[0]" (inside a
// sequence) strips to a legal variable name.
func captureName(field, s string) (string, bool) {
	if !strings.HasPrefix(s, "$") {
		return "", false
	}
	name := strings.TrimPrefix(s, "$")
	if name == "" {
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		return field, true
	}
	return name, true
}
