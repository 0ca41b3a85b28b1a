// Package ansi registers the baseline ANSI SQL dialect.
//
// It deliberately carries no median/percentile aggregates and no pushable
// table-calculation functions, so queries using those either fail to compile
// (sorting on them) or fall back to row-local evaluation in the result mapper.
package ansi

import (
	"github.com/leapstack-labs/metriq/pkg/dialect"
)

func init() {
	dialect.Register(New())
}

// New builds the ANSI dialect.
func New() *dialect.Dialect {
	return dialect.NewDialect("ansi").
		Identifiers(`"`, `"`, `""`).
		Placeholder(dialect.PlaceholderQuestion).
		WithStandardAggregates().
		Build()
}
