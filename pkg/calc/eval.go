package calc

import (
	"fmt"
	"math"
)

// Eval computes the expression over one result row. The row maps field ids
// to raw values; missing or nil inputs propagate SQL-style (an operation on
// NULL is NULL, except coalesce).
func Eval(e Expr, row map[string]any) (any, error) {
	switch n := e.(type) {
	case *NumberLit:
		return n.Value, nil

	case *StringLit:
		return n.Value, nil

	case *FieldRef:
		v, ok := row[n.FieldID]
		if !ok {
			return nil, fmt.Errorf("row has no field %q", n.FieldID)
		}
		return v, nil

	case *UnaryExpr:
		x, err := Eval(n.X, row)
		if err != nil {
			return nil, err
		}
		if x == nil {
			return nil, nil
		}
		f, err := asNumber(x)
		if err != nil {
			return nil, err
		}
		return -f, nil

	case *BinaryExpr:
		left, err := Eval(n.Left, row)
		if err != nil {
			return nil, err
		}
		right, err := Eval(n.Right, row)
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, nil
		}
		return evalBinary(n.Op, left, right)

	case *CallExpr:
		return evalCall(n, row)

	default:
		return nil, fmt.Errorf("unknown expression node %T", e)
	}
}

func evalBinary(op string, left, right any) (any, error) {
	switch op {
	case "=", "!=":
		ls, lok := left.(string)
		rs, rok := right.(string)
		if lok && rok {
			if op == "=" {
				return ls == rs, nil
			}
			return ls != rs, nil
		}
	}

	lf, err := asNumber(left)
	if err != nil {
		return nil, err
	}
	rf, err := asNumber(right)
	if err != nil {
		return nil, err
	}

	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, nil
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, nil
		}
		return math.Mod(lf, rf), nil
	case "=":
		return lf == rf, nil
	case "!=":
		return lf != rf, nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

func evalCall(n *CallExpr, row map[string]any) (any, error) {
	if n.Func == "coalesce" {
		for _, a := range n.Args {
			v, err := Eval(a, row)
			if err != nil {
				return nil, err
			}
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	}

	if n.Func == "if" {
		cond, err := Eval(n.Args[0], row)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(bool)
		if !ok {
			if cond == nil {
				b = false
			} else {
				return nil, fmt.Errorf("if condition is not boolean (%T)", cond)
			}
		}
		if b {
			return Eval(n.Args[1], row)
		}
		return Eval(n.Args[2], row)
	}

	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		args[i] = v
	}

	switch n.Func {
	case "abs":
		f, err := asNumber(args[0])
		if err != nil {
			return nil, err
		}
		return math.Abs(f), nil
	case "floor":
		f, err := asNumber(args[0])
		if err != nil {
			return nil, err
		}
		return math.Floor(f), nil
	case "ceil":
		f, err := asNumber(args[0])
		if err != nil {
			return nil, err
		}
		return math.Ceil(f), nil
	case "round":
		f, err := asNumber(args[0])
		if err != nil {
			return nil, err
		}
		digits := 0.0
		if len(args) == 2 {
			digits, err = asNumber(args[1])
			if err != nil {
				return nil, err
			}
		}
		scale := math.Pow(10, digits)
		return math.Round(f*scale) / scale, nil
	}
	return nil, fmt.Errorf("unknown function %q", n.Func)
}

func asNumber(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
}
