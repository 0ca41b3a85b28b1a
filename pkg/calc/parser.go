package calc

import (
	"fmt"
	"strconv"
)

// Parse parses a calculation expression.
func Parse(input string) (Expr, error) {
	p := &parser{lex: &lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("position %d: unexpected %q after expression", p.cur.pos, p.cur.text)
	}
	return expr, nil
}

type parser struct {
	lex *lexer
	cur token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

// precedence returns the binding power of an infix operator; 0 means the
// token is not an infix operator.
func precedence(tok token) int {
	if tok.kind != tokOp {
		return 0
	}
	switch tok.text {
	case "=", "!=", "<", "<=", ">", ">=":
		return 1
	case "+", "-":
		return 2
	case "*", "/", "%":
		return 3
	}
	return 0
}

func (p *parser) parseExpr(minPrec int) (Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for {
		prec := precedence(p.cur)
		if prec == 0 || prec <= minPrec {
			return left, nil
		}
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpr(prec)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parsePrefix() (Expr, error) {
	tok := p.cur
	switch tok.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("position %d: invalid number %q", tok.pos, tok.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &NumberLit{Value: v}, nil

	case tokString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &StringLit{Value: tok.text}, nil

	case tokRef:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &FieldRef{FieldID: tok.text}, nil

	case tokOp:
		if tok.text != "-" {
			return nil, fmt.Errorf("position %d: unexpected operator %q", tok.pos, tok.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr(3)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", X: x}, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("position %d: expected ')'", p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokIdent:
		name := tok.text
		if !isKnownFunction(name) {
			return nil, fmt.Errorf("position %d: unknown function %q", tok.pos, name)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tokLParen {
			return nil, fmt.Errorf("position %d: expected '(' after function %q", p.cur.pos, name)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		var args []Expr
		if p.cur.kind != tokRParen {
			for {
				arg, err := p.parseExpr(0)
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.cur.kind != tokComma {
					break
				}
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("position %d: expected ')' closing call to %q", p.cur.pos, name)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		call := &CallExpr{Func: name, Args: args}
		if err := checkArity(call, tok.pos); err != nil {
			return nil, err
		}
		return call, nil

	default:
		return nil, fmt.Errorf("position %d: unexpected %q", tok.pos, tok.text)
	}
}

func checkArity(call *CallExpr, pos int) error {
	n := len(call.Args)
	ok := true
	switch call.Func {
	case "abs", "floor", "ceil":
		ok = n == 1
	case "round":
		ok = n == 1 || n == 2
	case "coalesce":
		ok = n >= 1
	case "if":
		ok = n == 3
	}
	if !ok {
		return fmt.Errorf("position %d: wrong number of arguments for %s", pos, call.Func)
	}
	return nil
}
