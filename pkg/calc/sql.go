package calc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/metriq/pkg/dialect"
)

// UnsupportedError reports an expression feature the target dialect cannot
// express in SQL. Callers fall back to row-local evaluation.
type UnsupportedError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("dialect %s cannot express %s in SQL", e.Dialect, e.Feature)
}

// RenderSQL renders the expression as a SQL fragment for the given dialect.
// aliasFor maps a referenced field id to the quoted output alias it is
// selected under in the enclosing query.
//
// Returns *UnsupportedError when the dialect lacks a function the expression
// uses; any other error means the expression references an unknown field.
func RenderSQL(e Expr, d *dialect.Dialect, aliasFor func(fieldID string) (string, error)) (string, error) {
	switch n := e.(type) {
	case *NumberLit:
		return formatNumber(n.Value), nil

	case *StringLit:
		return d.EscapeString(n.Value), nil

	case *FieldRef:
		alias, err := aliasFor(n.FieldID)
		if err != nil {
			return "", err
		}
		return alias, nil

	case *UnaryExpr:
		x, err := RenderSQL(n.X, d, aliasFor)
		if err != nil {
			return "", err
		}
		return "(" + n.Op + x + ")", nil

	case *BinaryExpr:
		left, err := RenderSQL(n.Left, d, aliasFor)
		if err != nil {
			return "", err
		}
		right, err := RenderSQL(n.Right, d, aliasFor)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + n.Op + " " + right + ")", nil

	case *CallExpr:
		if !d.SupportsCalcFunction(n.Func) {
			return "", &UnsupportedError{Dialect: d.Name, Feature: "function " + n.Func}
		}
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			s, err := RenderSQL(a, d, aliasFor)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		if n.Func == "if" {
			return fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", args[0], args[1], args[2]), nil
		}
		return strings.ToUpper(n.Func) + "(" + strings.Join(args, ", ") + ")", nil

	default:
		return "", fmt.Errorf("unknown expression node %T", e)
	}
}

// Pushable reports whether the expression can be rendered in the dialect
// without falling back to row-local evaluation.
func Pushable(e Expr, d *dialect.Dialect) bool {
	ok := true
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *UnaryExpr:
			walk(n.X)
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *CallExpr:
			if !d.SupportsCalcFunction(n.Func) {
				ok = false
				return
			}
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return ok
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
