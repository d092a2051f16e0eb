package validator

import (
	"encoding/json"

	ac "github.com/petar-dambovaliev/aho-corasick"

	"github.com/rulegate/rulegate/engine/compiler"
)

// literalPrefilter indexes the literal strings each clause requires into one
// Aho-Corasick automaton. At evaluate time the record is serialized and
// scanned once; a clause whose required literals are not all present cannot
// match and is skipped. Clauses without literal requirements are always
// evaluated, so the prefilter never changes the outcome, only the work.
type literalPrefilter struct {
	automaton       *ac.AhoCorasick
	patterns        []string
	clausePatterns  [][]int // clause index -> required pattern indices
	anyRequirements bool
}

func newLiteralPrefilter(clauses []*compiler.Clause) *literalPrefilter {
	p := &literalPrefilter{
		clausePatterns: make([][]int, len(clauses)),
	}
	index := make(map[string]int)
	for i, c := range clauses {
		for _, lit := range c.LiteralStrings() {
			if !safeLiteral(lit) {
				continue
			}
			idx, ok := index[lit]
			if !ok {
				idx = len(p.patterns)
				p.patterns = append(p.patterns, lit)
				index[lit] = idx
			}
			p.clausePatterns[i] = append(p.clausePatterns[i], idx)
			p.anyRequirements = true
		}
	}
	if !p.anyRequirements {
		return nil
	}

	builder := ac.NewAhoCorasickBuilder(ac.Opts{
		AsciiCaseInsensitive: false,
		MatchKind:            ac.LeftMostLongestMatch,
	})
	automaton := builder.Build(p.patterns)
	p.automaton = &automaton
	return p
}

// safeLiteral reports whether a literal survives json.Marshal verbatim.
// Anything the encoder escapes (quotes, backslashes, <, >, &, control bytes,
// non-ASCII) cannot be searched for in the serialized record.
func safeLiteral(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e {
			return false
		}
		switch c {
		case '"', '\\', '<', '>', '&':
			return false
		}
	}
	return true
}

func (p *literalPrefilter) patternCount() int {
	if p == nil {
		return 0
	}
	return len(p.patterns)
}

// clausesToSkip scans the serialized record and marks every clause with an
// absent required literal. A nil result means evaluate everything.
func (p *literalPrefilter) clausesToSkip(record map[string]any) []bool {
	if p == nil || p.automaton == nil {
		return nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	hits := make([]bool, len(p.patterns))
	for _, m := range p.automaton.FindAll(string(raw)) {
		if m.Pattern() >= 0 && m.Pattern() < len(hits) {
			hits[m.Pattern()] = true
		}
	}
	skip := make([]bool, len(p.clausePatterns))
	for i, required := range p.clausePatterns {
		for _, idx := range required {
			if !hits[idx] {
				skip[i] = true
				break
			}
		}
	}
	return skip
}
