// Package postgres registers the PostgreSQL dialect.
package postgres

import (
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/types"
)

func init() {
	dialect.Register(New())
}

// New builds the Postgres dialect.
func New() *dialect.Dialect {
	return dialect.NewDialect("postgres").
		Identifiers(`"`, `"`, `""`).
		Placeholder(dialect.PlaceholderDollar).
		WithStandardAggregates().
		Aggregate(types.AggMedian, dialect.MedianFromPercentileCont()).
		Aggregate(types.AggPercentile, dialect.PercentileContAggregate()).
		Timezone(func(expr, tz string) string {
			// Postgres needs the expression parenthesized when it is compound.
			return fmt.Sprintf("(%s AT TIME ZONE '%s')", expr, tz)
		}).
		// Postgres has no IF(); the calc renderer emits CASE WHEN instead,
		// so "if" is still pushable.
		CalcFunctions("abs", "round", "floor", "ceil", "coalesce", "if").
		Build()
}
