package expr

import (
	"strconv"
	"strings"
	"unicode"
)

// UnsupportedExpressionError reports a construct outside the fixed
// relational/logical grammar, or text that does not parse at all.
type UnsupportedExpressionError struct{ Construct string }

func (e *UnsupportedExpressionError) Error() string {
	return "unsupported expression: " + e.Construct
}

func unsupported(construct string) error {
	return &UnsupportedExpressionError{Construct: construct}
}

type tok struct{ kind, val string } // id|num|str|op|kw|lpar|rpar|lbrak|rbrak|comma

// Parse parses a guard expression into an AST. Grammar:
//
//	expr   := and ("or" and)*
//	and    := cmp ("and" cmp)*
//	cmp    := "(" expr ")" | operand relop operand | operand ["not"] "in" list
//	operand:= ident | number | string | "true" | "false" | list
//	relop  := ">=" | "<=" | "<" | ">" | "==" | "="
//	list   := "[" (operand ("," operand)*)? "]"
func Parse(input string) (Expr, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, unsupported("trailing input after " + p.peek().val)
	}
	return e, nil
}

func tokenize(s string) ([]tok, error) {
	out := make([]tok, 0, 16)
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			out = append(out, tok{kind: "lpar"})
			i++
		case c == ')':
			out = append(out, tok{kind: "rpar"})
			i++
		case c == '[':
			out = append(out, tok{kind: "lbrak"})
			i++
		case c == ']':
			out = append(out, tok{kind: "rbrak"})
			i++
		case c == ',':
			out = append(out, tok{kind: "comma"})
			i++
		case c == '>' || c == '<' || c == '=':
			op := string(c)
			if i+1 < len(s) && s[i+1] == '=' {
				op += "="
				i++
			}
			out = append(out, tok{kind: "op", val: op})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(s) && s[j] != quote {
				j++
			}
			if j >= len(s) {
				return nil, unsupported("unterminated string literal")
			}
			out = append(out, tok{kind: "str", val: s[i+1 : j]})
			i = j + 1
		case c >= '0' && c <= '9' || c == '-' && startsNumber(out):
			j := i + 1
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			out = append(out, tok{kind: "num", val: s[i:j]})
			i = j
		case isIdentStart(rune(c)):
			j := i + 1
			for j < len(s) && isIdentPart(rune(s[j])) {
				j++
			}
			word := s[i:j]
			switch strings.ToLower(word) {
			case "and", "or", "in", "not":
				out = append(out, tok{kind: "kw", val: strings.ToLower(word)})
			case "true", "false":
				out = append(out, tok{kind: "bool", val: strings.ToLower(word)})
			default:
				out = append(out, tok{kind: "id", val: word})
			}
			i = j
		default:
			return nil, unsupported("character " + strconv.Quote(string(c)))
		}
	}
	return out, nil
}

// startsNumber reports whether a '-' at the current position begins a number
// literal rather than trailing an operand.
func startsNumber(sofar []tok) bool {
	if len(sofar) == 0 {
		return true
	}
	switch sofar[len(sofar)-1].kind {
	case "op", "kw", "lpar", "lbrak", "comma":
		return true
	default:
		return false
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type parser struct {
	toks []tok
	pos  int
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }
func (p *parser) peek() tok { return p.toks[p.pos] }
func (p *parser) next() tok { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) accept(kind, val string) bool {
	if p.eof() {
		return false
	}
	t := p.peek()
	if t.kind == kind && (val == "" || t.val == val) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("kw", "or") {
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &Or{L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.accept("kw", "and") {
		r, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		l = &And{L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseCmp() (Expr, error) {
	if p.accept("lpar", "") {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept("rpar", "") {
			return nil, unsupported("missing closing parenthesis")
		}
		return e, nil
	}

	l, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.eof() {
		return nil, unsupported("comparison without operator")
	}

	t := p.next()
	switch {
	case t.kind == "op":
		var op CmpOp
		switch t.val {
		case "==", "=":
			op = OpEq
		case ">=":
			op = OpGte
		case "<=":
			op = OpLte
		case "<":
			op = OpLt
		case ">":
			op = OpGt
		default:
			return nil, unsupported("operator " + t.val)
		}
		r, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Cmp{Op: op, L: l, R: r}, nil

	case t.kind == "kw" && t.val == "in":
		r, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Cmp{Op: OpIn, L: l, R: r}, nil

	case t.kind == "kw" && t.val == "not":
		if !p.accept("kw", "in") {
			return nil, unsupported("not without in")
		}
		r, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Cmp{Op: OpNotIn, L: l, R: r}, nil

	default:
		return nil, unsupported("token " + t.val + " where an operator was expected")
	}
}

func (p *parser) parseOperand() (Operand, error) {
	if p.eof() {
		return Operand{}, unsupported("missing operand")
	}
	t := p.next()
	switch t.kind {
	case "id":
		return Operand{Var: t.val, IsVar: true}, nil
	case "str":
		return Operand{Lit: t.val}, nil
	case "bool":
		return Operand{Lit: t.val == "true"}, nil
	case "num":
		if strings.Contains(t.val, ".") {
			f, err := strconv.ParseFloat(t.val, 64)
			if err != nil {
				return Operand{}, unsupported("number " + t.val)
			}
			return Operand{Lit: f}, nil
		}
		n, err := strconv.Atoi(t.val)
		if err != nil {
			return Operand{}, unsupported("number " + t.val)
		}
		return Operand{Lit: n}, nil
	case "lbrak":
		list := make([]any, 0, 4)
		if p.accept("rbrak", "") {
			return Operand{Lit: list}, nil
		}
		for {
			el, err := p.parseOperand()
			if err != nil {
				return Operand{}, err
			}
			if el.IsVar {
				return Operand{}, unsupported("variable inside list literal")
			}
			list = append(list, el.Lit)
			if p.accept("comma", "") {
				continue
			}
			if p.accept("rbrak", "") {
				return Operand{Lit: list}, nil
			}
			return Operand{}, unsupported("malformed list literal")
		}
	default:
		return Operand{}, unsupported("token " + t.val + " where an operand was expected")
	}
}
