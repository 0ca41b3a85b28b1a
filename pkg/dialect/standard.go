package dialect

import (
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/types"
)

// WithStandardAggregates registers the aggregation renderers shared by every
// SQL dialect: SUM, COUNT, COUNT DISTINCT, AVG, MIN, MAX. Median and
// percentile forms vary per warehouse and are registered by each dialect
// package individually.
func (b *Builder) WithStandardAggregates() *Builder {
	return b.
		Aggregate(types.AggSum, func(expr string, _ float64) string {
			return fmt.Sprintf("SUM(%s)", expr)
		}).
		Aggregate(types.AggCount, func(expr string, _ float64) string {
			return fmt.Sprintf("COUNT(%s)", expr)
		}).
		Aggregate(types.AggCountDistinct, func(expr string, _ float64) string {
			return fmt.Sprintf("COUNT(DISTINCT %s)", expr)
		}).
		Aggregate(types.AggAvg, func(expr string, _ float64) string {
			return fmt.Sprintf("AVG(%s)", expr)
		}).
		Aggregate(types.AggMin, func(expr string, _ float64) string {
			return fmt.Sprintf("MIN(%s)", expr)
		}).
		Aggregate(types.AggMax, func(expr string, _ float64) string {
			return fmt.Sprintf("MAX(%s)", expr)
		})
}

// PercentileContAggregate returns the standard PERCENTILE_CONT ... WITHIN
// GROUP renderer used by Postgres, DuckDB and Snowflake.
func PercentileContAggregate() AggregateFunc {
	return func(expr string, p float64) string {
		return fmt.Sprintf("PERCENTILE_CONT(%g) WITHIN GROUP (ORDER BY %s)", p, expr)
	}
}

// MedianFromPercentileCont renders median as PERCENTILE_CONT(0.5).
func MedianFromPercentileCont() AggregateFunc {
	cont := PercentileContAggregate()
	return func(expr string, _ float64) string {
		return cont(expr, 0.5)
	}
}
