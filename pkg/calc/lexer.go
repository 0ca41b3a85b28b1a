package calc

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokRef
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil

	case c == '$':
		// ${field_id}
		if l.pos+1 >= len(l.input) || l.input[l.pos+1] != '{' {
			return token{}, fmt.Errorf("position %d: expected '{' after '$'", start)
		}
		end := strings.IndexByte(l.input[l.pos:], '}')
		if end < 0 {
			return token{}, fmt.Errorf("position %d: unterminated field reference", start)
		}
		ref := l.input[l.pos+2 : l.pos+end]
		if ref == "" {
			return token{}, fmt.Errorf("position %d: empty field reference", start)
		}
		l.pos += end + 1
		return token{kind: tokRef, text: ref, pos: start}, nil

	case c == '\'':
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.input) {
			if l.input[l.pos] == '\'' {
				// '' escapes a quote
				if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
					sb.WriteByte('\'')
					l.pos += 2
					continue
				}
				l.pos++
				return token{kind: tokString, text: sb.String(), pos: start}, nil
			}
			sb.WriteByte(l.input[l.pos])
			l.pos++
		}
		return token{}, fmt.Errorf("position %d: unterminated string literal", start)

	case c >= '0' && c <= '9' || c == '.':
		for l.pos < len(l.input) && (l.input[l.pos] >= '0' && l.input[l.pos] <= '9' || l.input[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}, nil

	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: strings.ToLower(l.input[start:l.pos]), pos: start}, nil

	default:
		for _, op := range []string{"<=", ">=", "!=", "<>", "==", "+", "-", "*", "/", "%", "<", ">", "="} {
			if strings.HasPrefix(l.input[l.pos:], op) {
				l.pos += len(op)
				return token{kind: tokOp, text: normalizeOp(op), pos: start}, nil
			}
		}
		return token{}, fmt.Errorf("position %d: unexpected character %q", start, string(c))
	}
}

func normalizeOp(op string) string {
	switch op {
	case "==":
		return "="
	case "<>":
		return "!="
	default:
		return op
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
