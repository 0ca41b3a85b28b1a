// Package duckdb registers the DuckDB SQL dialect.
package duckdb

import (
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/types"
)

func init() {
	dialect.Register(New())
}

// New builds the DuckDB dialect.
func New() *dialect.Dialect {
	return dialect.NewDialect("duckdb").
		Identifiers(`"`, `"`, `""`).
		Placeholder(dialect.PlaceholderQuestion).
		WithStandardAggregates().
		Aggregate(types.AggMedian, dialect.MedianFromPercentileCont()).
		Aggregate(types.AggPercentile, dialect.PercentileContAggregate()).
		Timezone(func(expr, tz string) string {
			return fmt.Sprintf("timezone('%s', %s)", tz, expr)
		}).
		CalcFunctions("abs", "round", "floor", "ceil", "coalesce", "if").
		Build()
}
