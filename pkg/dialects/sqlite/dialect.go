// Package sqlite registers the SQLite dialect.
//
// SQLite has no PERCENTILE_CONT, so median and percentile metrics are a
// compile-time capability error rather than a runtime SQL failure.
package sqlite

import (
	"github.com/leapstack-labs/metriq/pkg/dialect"
)

func init() {
	dialect.Register(New())
}

// New builds the SQLite dialect.
func New() *dialect.Dialect {
	return dialect.NewDialect("sqlite").
		Identifiers(`"`, `"`, `""`).
		Placeholder(dialect.PlaceholderQuestion).
		WithStandardAggregates().
		CalcFunctions("abs", "round", "coalesce", "if").
		Build()
}
