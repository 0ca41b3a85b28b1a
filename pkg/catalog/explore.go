// Package catalog builds the immutable field catalog for one explore:
// the index of all dimensions, metrics and join metadata that validation,
// join resolution and compilation run against.
//
// A Catalog is built once per explore snapshot and dialect, rejects
// duplicate field ids and join cycles at build time, and is read-only
// afterwards, so it may be shared across concurrent compilations. Explore
// changes produce a whole new Catalog; snapshots are never mutated in place.
package catalog

import (
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/types"
)

// JoinType is the SQL join kind used to attach a joined table.
type JoinType string

// Join kinds. Left is the default when a join does not specify one.
const (
	JoinLeft  JoinType = "LEFT OUTER JOIN"
	JoinInner JoinType = "INNER JOIN"
	JoinRight JoinType = "RIGHT OUTER JOIN"
	JoinFull  JoinType = "FULL OUTER JOIN"
)

// Explore is the queryable unit: a root table plus joined tables reachable
// from it. This is the raw definition consumed by Build; the compiled,
// queryable form is Catalog.
type Explore struct {
	Name        string
	Label       string
	Description string
	BaseTable   string
	Tables      []*Table
	Joins       []Join
}

// Table declares one table of an explore and its fields.
type Table struct {
	Name        string
	Label       string
	GroupLabel  string
	Description string

	// SQLTable is the physical relation, possibly schema-qualified
	// ("analytics.orders").
	SQLTable string

	// RequiredAttributes gates access to the whole table on user attributes.
	RequiredAttributes map[string]string

	Tags []string

	Dimensions []FieldSpec
	Metrics    []FieldSpec
}

// FieldSpec declares a single dimension or metric on a table.
type FieldSpec struct {
	Name        string
	Label       string
	Description string
	Type        types.ValueType

	// SQL is the raw expression. ${TABLE} refers to the owning table;
	// ${other_table.field} references another field's compiled expression.
	SQL string

	Hidden bool

	// Aggregation is set for metrics only.
	Aggregation types.Aggregation
	// Percentile is the fraction for percentile metrics (0 < p < 1).
	Percentile float64

	// DrillFields lists extra dimension ids included when drilling into
	// this metric's underlying data.
	DrillFields []string

	RequiredAttributes map[string]string

	Format *displayfmt.Options
}

// Join attaches one table to the explore. SQLOn is a SQL fragment whose
// field references (${table.field}) determine which tables the join depends
// on and therefore its position in the join order.
type Join struct {
	Table string
	Type  JoinType
	SQLOn string
}
