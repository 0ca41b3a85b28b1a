package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/dialect"
)

func testDialect(t *testing.T) *dialect.Dialect {
	t.Helper()
	return dialect.NewDialect("test").
		WithStandardAggregates().
		CalcFunctions("abs", "round", "floor", "ceil", "coalesce", "if").
		Build()
}

func bareDialect(t *testing.T) *dialect.Dialect {
	t.Helper()
	return dialect.NewDialect("bare").WithStandardAggregates().Build()
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "subtraction", input: "${orders_revenue} - ${orders_cost}"},
		{name: "precedence", input: "1 + 2 * 3"},
		{name: "parens", input: "(1 + 2) * 3"},
		{name: "comparison", input: "${orders_revenue} > 100"},
		{name: "unary minus", input: "-${orders_cost}"},
		{name: "function", input: "round(${orders_revenue} / 100, 2)"},
		{name: "if", input: "if(${orders_revenue} > 0, 1, 0)"},
		{name: "string literal", input: "'it''s'"},
		{name: "unknown function", input: "median(1)", wantErr: "unknown function"},
		{name: "bad arity", input: "if(1, 2)", wantErr: "wrong number of arguments"},
		{name: "unterminated ref", input: "${orders_revenue", wantErr: "unterminated field reference"},
		{name: "trailing garbage", input: "1 2", wantErr: "unexpected"},
		{name: "empty ref", input: "${}", wantErr: "empty field reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.input)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, expr)
		})
	}
}

func TestParse_Precedence(t *testing.T) {
	expr, err := Parse("1 + 2 * 3 > 5")
	require.NoError(t, err)

	// Comparison binds loosest: (1 + (2*3)) > 5.
	cmp, ok := expr.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ">", cmp.Op)

	add, ok := cmp.Left.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)

	mul, ok := add.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
}

func TestReferencedFields(t *testing.T) {
	expr, err := Parse("${a_x} + ${b_y} * ${a_x}")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_x", "b_y"}, ReferencedFields(expr))
}

func TestRenderSQL(t *testing.T) {
	d := testDialect(t)
	aliasFor := func(id string) (string, error) { return d.QuoteIdent(id), nil }

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "arithmetic",
			input: "${orders_revenue} - ${orders_cost}",
			want:  `("orders_revenue" - "orders_cost")`,
		},
		{
			name:  "function upper-cased",
			input: "round(${orders_revenue}, 2)",
			want:  `ROUND("orders_revenue", 2)`,
		},
		{
			name:  "if becomes case",
			input: "if(${orders_revenue} > 0, 1, 0)",
			want:  `CASE WHEN ("orders_revenue" > 0) THEN 1 ELSE 0 END`,
		},
		{
			name:  "string escaped",
			input: "'it''s'",
			want:  `'it''s'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.input)
			require.NoError(t, err)
			got, err := RenderSQL(expr, d, aliasFor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderSQL_UnsupportedFunction(t *testing.T) {
	expr, err := Parse("round(${a_x}, 2)")
	require.NoError(t, err)

	d := bareDialect(t)
	_, err = RenderSQL(expr, d, func(id string) (string, error) { return id, nil })

	var unsupported *UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "bare", unsupported.Dialect)
}

func TestPushable(t *testing.T) {
	withFns := testDialect(t)
	without := bareDialect(t)

	expr, err := Parse("round(${a_x}, 2) + 1")
	require.NoError(t, err)
	assert.True(t, Pushable(expr, withFns))
	assert.False(t, Pushable(expr, without))

	plain, err := Parse("${a_x} - ${a_y}")
	require.NoError(t, err)
	assert.True(t, Pushable(plain, without))
}

func TestEval(t *testing.T) {
	row := map[string]any{
		"orders_revenue": 150.0,
		"orders_cost":    50.0,
		"orders_note":    "hi",
		"orders_missing": nil,
	}

	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "profit", input: "${orders_revenue} - ${orders_cost}", want: 100.0},
		{name: "precedence", input: "1 + 2 * 3", want: 7.0},
		{name: "comparison", input: "${orders_revenue} > 100", want: true},
		{name: "null propagates", input: "${orders_missing} + 1", want: nil},
		{name: "division by zero is null", input: "1 / 0", want: nil},
		{name: "coalesce skips null", input: "coalesce(${orders_missing}, 7)", want: 7.0},
		{name: "if true branch", input: "if(${orders_revenue} > 100, 1, 0)", want: 1.0},
		{name: "if null condition is false", input: "if(${orders_missing} > 1, 1, 0)", want: 0.0},
		{name: "round with digits", input: "round(2.345, 2)", want: 2.35},
		{name: "abs", input: "abs(0 - 4)", want: 4.0},
		{name: "string equality", input: "${orders_note} = 'hi'", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.input)
			require.NoError(t, err)
			got, err := Eval(expr, row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_UnknownField(t *testing.T) {
	expr, err := Parse("${nope_x} + 1")
	require.NoError(t, err)
	_, err = Eval(expr, map[string]any{})
	assert.ErrorContains(t, err, "nope_x")
}
