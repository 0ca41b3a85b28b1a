package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/types"
)

func TestQuoteIdent(t *testing.T) {
	d := NewDialect("test").Build()
	assert.Equal(t, `"orders"`, d.QuoteIdent("orders"))
	assert.Equal(t, `"or""ders"`, d.QuoteIdent(`or"ders`))

	backtick := NewDialect("tick").Identifiers("`", "`", "``").Build()
	assert.Equal(t, "`orders`", backtick.QuoteIdent("orders"))
}

func TestEscapeString(t *testing.T) {
	d := NewDialect("test").Build()
	assert.Equal(t, "'it''s'", d.EscapeString("it's"))
}

func TestFormatPlaceholder(t *testing.T) {
	question := NewDialect("q").Placeholder(PlaceholderQuestion).Build()
	assert.Equal(t, "?", question.FormatPlaceholder(1))
	assert.Equal(t, "?", question.FormatPlaceholder(5))

	dollar := NewDialect("d").Placeholder(PlaceholderDollar).Build()
	assert.Equal(t, "$1", dollar.FormatPlaceholder(1))
	assert.Equal(t, "$5", dollar.FormatPlaceholder(5))
}

func TestRenderAggregate(t *testing.T) {
	d := NewDialect("test").
		WithStandardAggregates().
		Aggregate(types.AggPercentile, PercentileContAggregate()).
		Aggregate(types.AggMedian, MedianFromPercentileCont()).
		Build()

	tests := []struct {
		agg        types.Aggregation
		percentile float64
		want       string
	}{
		{types.AggSum, 0, `SUM("orders"."amount")`},
		{types.AggCount, 0, `COUNT("orders"."amount")`},
		{types.AggCountDistinct, 0, `COUNT(DISTINCT "orders"."amount")`},
		{types.AggAvg, 0, `AVG("orders"."amount")`},
		{types.AggMin, 0, `MIN("orders"."amount")`},
		{types.AggMax, 0, `MAX("orders"."amount")`},
		{types.AggPercentile, 0.9, `PERCENTILE_CONT(0.9) WITHIN GROUP (ORDER BY "orders"."amount")`},
		{types.AggMedian, 0, `PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY "orders"."amount")`},
	}
	for _, tt := range tests {
		t.Run(string(tt.agg), func(t *testing.T) {
			got, err := d.RenderAggregate(tt.agg, `"orders"."amount"`, tt.percentile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderAggregate_CapabilityGap(t *testing.T) {
	d := NewDialect("limited").WithStandardAggregates().Build()

	_, err := d.RenderAggregate(types.AggMedian, "x", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "median")
	assert.False(t, d.SupportsAggregate(types.AggMedian))
	assert.True(t, d.SupportsAggregate(types.AggSum))
}

func TestRegistry(t *testing.T) {
	Register(NewDialect("TestOnly").Build())

	d, ok := Get("testonly")
	require.True(t, ok)
	assert.Equal(t, "TestOnly", d.Name)

	_, ok = Get("never-registered")
	assert.False(t, ok)
	assert.Contains(t, List(), "testonly")
}

func TestConvertTimezone(t *testing.T) {
	plain := NewDialect("plain").Build()
	assert.Equal(t, "x", plain.ConvertTimezone("x", "UTC"))

	tz := NewDialect("tz").Timezone(func(expr, zone string) string {
		return "CONVERT_TIMEZONE('" + zone + "', " + expr + ")"
	}).Build()
	assert.Equal(t, "CONVERT_TIMEZONE('Europe/Berlin', x)", tz.ConvertTimezone("x", "Europe/Berlin"))
	assert.Equal(t, "x", tz.ConvertTimezone("x", ""))
}
