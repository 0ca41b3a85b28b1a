package results

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/calc"
	"github.com/leapstack-labs/metriq/pkg/catalog"
	"github.com/leapstack-labs/metriq/pkg/compiler"
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/types"
	"github.com/leapstack-labs/metriq/pkg/validate"
	"github.com/leapstack-labs/metriq/pkg/warehouse"
)

func mockStream(t *testing.T, cols []string, rows ...[]driver.Value) *warehouse.RowStream {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := sqlmock.NewRows(cols)
	for _, r := range rows {
		mr.AddRow(r...)
	}
	mock.ExpectQuery("SELECT").WillReturnRows(mr)

	sqlRows, err := db.QueryContext(context.Background(), "SELECT 1")
	require.NoError(t, err)
	stream, err := warehouse.NewRowStream(context.Background(), sqlRows)
	require.NoError(t, err)
	return stream
}

func mustParse(t *testing.T, src string) calc.Expr {
	t.Helper()
	expr, err := calc.Parse(src)
	require.NoError(t, err)
	return expr
}

func baseQuery(t *testing.T) *compiler.CompiledQuery {
	t.Helper()
	return &compiler.CompiledQuery{
		Columns: []compiler.OutputColumn{
			{ID: "orders_status", Kind: types.KindDimension, Type: types.TypeString},
			{ID: "orders_revenue", Kind: types.KindMetric, Type: types.TypeNumber},
		},
	}
}

func TestMapper_MapsRows(t *testing.T) {
	stream := mockStream(t, []string{"orders_status", "orders_revenue"},
		[]driver.Value{"new", 100.5},
		[]driver.Value{nil, nil},
	)

	m, err := NewMapper(baseQuery(t), stream, nil)
	require.NoError(t, err)
	rows, err := m.Materialize()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	require.Len(t, first, 2)
	assert.Equal(t, "new", first["orders_status"].Raw)
	assert.Equal(t, "new", first["orders_status"].Formatted)
	assert.Equal(t, 100.5, first["orders_revenue"].Raw)
	assert.Equal(t, "100.5", first["orders_revenue"].Formatted)

	// Nulls keep their column with the null label.
	second := rows[1]
	require.Len(t, second, 2)
	assert.Nil(t, second["orders_status"].Raw)
	assert.Equal(t, displayfmt.DefaultNullLabel, second["orders_status"].Formatted)
	assert.Equal(t, displayfmt.DefaultNullLabel, second["orders_revenue"].Formatted)
}

func TestMapper_EvaluatesRowLocalCalculations(t *testing.T) {
	q := baseQuery(t)
	q.Columns = append(q.Columns,
		compiler.OutputColumn{ID: "margin", Kind: types.KindTableCalculation, Type: types.TypeNumber, Computed: true},
		compiler.OutputColumn{ID: "margin_x2", Kind: types.KindTableCalculation, Type: types.TypeNumber, Computed: true},
	)
	q.PostCalculations = []validate.Calculation{
		{Name: "margin", Expr: mustParse(t, "${orders_revenue} - 50")},
		// Depends on the previous calculation's result.
		{Name: "margin_x2", Expr: mustParse(t, "${margin} * 2")},
	}

	stream := mockStream(t, []string{"orders_status", "orders_revenue"},
		[]driver.Value{"new", 100.0},
	)
	m, err := NewMapper(q, stream, nil)
	require.NoError(t, err)
	rows, err := m.Materialize()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, 50.0, rows[0]["margin"].Raw)
	assert.Equal(t, 100.0, rows[0]["margin_x2"].Raw)
	assert.Equal(t, "100", rows[0]["margin_x2"].Formatted)
}

func TestMapper_QueryTimezoneOverridesFormatter(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	q := &compiler.CompiledQuery{
		Columns: []compiler.OutputColumn{
			{ID: "orders_created_at", Kind: types.KindDimension, Type: types.TypeTimestamp},
		},
		Location: loc,
	}
	stream := mockStream(t, []string{"orders_created_at"},
		[]driver.Value{time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)},
	)

	m, err := NewMapper(q, stream, nil)
	require.NoError(t, err)
	rows, err := m.Materialize()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// The compiled query's zone wins over the formatter's default UTC.
	assert.Equal(t, "2026-01-01 22:00:00", rows[0]["orders_created_at"].Formatted)
}

func TestMapper_MissingColumn(t *testing.T) {
	stream := mockStream(t, []string{"orders_status"},
		[]driver.Value{"new"},
	)

	m, err := NewMapper(baseQuery(t), stream, nil)
	require.NoError(t, err)
	_, err = m.Materialize()

	var merr *MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 0, merr.RowIndex)
	assert.Equal(t, "orders_revenue", merr.FieldID)
	assert.Equal(t, "missing from result set", merr.Reason)
}

func TestMapper_CustomFormatter(t *testing.T) {
	f, err := displayfmt.New(displayfmt.Config{Locale: "en", NullLabel: "(null)"})
	require.NoError(t, err)

	stream := mockStream(t, []string{"orders_status", "orders_revenue"},
		[]driver.Value{nil, 1234.0},
	)
	m, err := NewMapper(baseQuery(t), stream, f)
	require.NoError(t, err)
	rows, err := m.Materialize()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "(null)", rows[0]["orders_status"].Formatted)
	assert.Equal(t, "1,234", rows[0]["orders_revenue"].Formatted)
}

func TestMapper_FormatOptionsApplied(t *testing.T) {
	round := 2
	q := &compiler.CompiledQuery{
		Columns: []compiler.OutputColumn{
			{ID: "orders_revenue", Kind: types.KindMetric, Type: types.TypeNumber,
				Format: &displayfmt.Options{Style: displayfmt.StyleCurrency, Currency: "EUR ", Round: &round}},
		},
	}
	stream := mockStream(t, []string{"orders_revenue"},
		[]driver.Value{1234.567},
	)
	m, err := NewMapper(q, stream, nil)
	require.NoError(t, err)
	rows, err := m.Materialize()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EUR 1,234.57", rows[0]["orders_revenue"].Formatted)
}

func TestTotals(t *testing.T) {
	metricCol := func(name string, agg types.Aggregation) validate.Column {
		return validate.Column{Field: &catalog.Field{
			Ref:         types.NewFieldRef("orders", name),
			Kind:        types.KindMetric,
			Type:        types.TypeNumber,
			Aggregation: agg,
		}}
	}
	v := &validate.Validated{
		Metrics: []validate.Column{
			metricCol("revenue", types.AggSum),
			metricCol("count", types.AggCount),
			metricCol("avg_amount", types.AggAvg),
		},
	}

	rows := []Row{
		{
			"orders_revenue":    {Raw: 100.0},
			"orders_count":      {Raw: int64(3)},
			"orders_avg_amount": {Raw: 33.3},
		},
		{
			"orders_revenue":    {Raw: 50.0},
			"orders_count":      {Raw: int64(1)},
			"orders_avg_amount": {Raw: 50.0},
		},
	}

	totals := Totals(&compiler.CompiledQuery{}, v, rows)
	assert.Equal(t, 150.0, totals["orders_revenue"])
	assert.Equal(t, 4.0, totals["orders_count"])

	// Averages are not additive and must be omitted.
	_, ok := totals["orders_avg_amount"]
	assert.False(t, ok)
}

func TestTotals_NoAdditiveMetrics(t *testing.T) {
	v := &validate.Validated{}
	assert.Nil(t, Totals(&compiler.CompiledQuery{}, v, nil))
}
