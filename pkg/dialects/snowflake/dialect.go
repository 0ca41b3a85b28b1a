// Package snowflake registers the Snowflake dialect.
//
// There is no bundled Snowflake warehouse adapter; the dialect exists so
// compiled SQL can be produced for external execution.
package snowflake

import (
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/types"
)

func init() {
	dialect.Register(New())
}

// New builds the Snowflake dialect.
func New() *dialect.Dialect {
	return dialect.NewDialect("snowflake").
		Identifiers(`"`, `"`, `""`).
		Placeholder(dialect.PlaceholderQuestion).
		WithStandardAggregates().
		Aggregate(types.AggMedian, func(expr string, _ float64) string {
			return fmt.Sprintf("MEDIAN(%s)", expr)
		}).
		Aggregate(types.AggPercentile, dialect.PercentileContAggregate()).
		Timezone(func(expr, tz string) string {
			return fmt.Sprintf("CONVERT_TIMEZONE('%s', %s)", tz, expr)
		}).
		CalcFunctions("abs", "round", "floor", "ceil", "coalesce", "if").
		Build()
}
