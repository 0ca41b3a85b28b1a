// Package calc implements the table-calculation expression language: a
// small, side-effect-free scalar language over already-selected fields.
//
// Expressions support arithmetic, comparisons, numeric and string literals,
// field references written as ${field_id}, and a basic function set
// (abs, round, floor, ceil, coalesce, if).
//
// The same parsed expression has two backends: RenderSQL pushes it into the
// warehouse query as a derived column over output aliases, and Eval computes
// it row-locally in the result mapper when the target dialect cannot express
// it.
package calc

// Expr is a node of a parsed calculation expression.
type Expr interface {
	exprNode()
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
}

// StringLit is a single-quoted string literal.
type StringLit struct {
	Value string
}

// FieldRef references a selected field or earlier table calculation by id.
type FieldRef struct {
	FieldID string
}

// UnaryExpr is a prefix operation (unary minus).
type UnaryExpr struct {
	Op string
	X  Expr
}

// BinaryExpr is an infix operation: arithmetic (+ - * / %) or comparison
// (= != < <= > >=).
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// CallExpr is a function call.
type CallExpr struct {
	Func string
	Args []Expr
}

func (*NumberLit) exprNode()  {}
func (*StringLit) exprNode()  {}
func (*FieldRef) exprNode()   {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*CallExpr) exprNode()   {}

// ReferencedFields returns the distinct field ids an expression depends on,
// in first-appearance order.
func ReferencedFields(e Expr) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *FieldRef:
			if !seen[n.FieldID] {
				seen[n.FieldID] = true
				out = append(out, n.FieldID)
			}
		case *UnaryExpr:
			walk(n.X)
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *CallExpr:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}

// Functions lists every function name the language defines.
func Functions() []string {
	return []string{"abs", "round", "floor", "ceil", "coalesce", "if"}
}

func isKnownFunction(name string) bool {
	for _, f := range Functions() {
		if f == name {
			return true
		}
	}
	return false
}
