// Package metricquery defines the declarative metric query: the request
// shape callers submit against an explore before validation and compilation.
//
// A MetricQuery is plain data. It references catalog fields by id and may
// carry inline definitions (additional metrics, custom dimensions, table
// calculations) that exist only for the lifetime of the request.
package metricquery

import (
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/types"
)

// MetricQuery is the declarative request compiled into warehouse SQL.
type MetricQuery struct {
	ExploreName string   `json:"exploreName"`
	Dimensions  []string `json:"dimensions"`
	Metrics     []string `json:"metrics"`

	Filters *FilterGroup `json:"filters,omitempty"`
	Sorts   []SortField  `json:"sorts,omitempty"`
	Limit   int          `json:"limit,omitempty"`

	TableCalculations []TableCalculation `json:"tableCalculations,omitempty"`
	AdditionalMetrics []AdditionalMetric `json:"additionalMetrics,omitempty"`
	CustomDimensions  []CustomDimension  `json:"customDimensions,omitempty"`

	// JoinTables forces extra explore tables into join resolution beyond the
	// tables the selected and filtered fields reference. Derived drill-down
	// queries use it to keep the clicked metric's join context.
	JoinTables []string `json:"joinTables,omitempty"`

	// Timezone is the IANA zone applied to date/timestamp bucketing and
	// display. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// SortField orders the result by an output field.
type SortField struct {
	FieldID   string              `json:"fieldId"`
	Direction types.SortDirection `json:"direction"`
}

// TableCalculation is a named expression computed over already-selected
// fields, one value per output row. The SQL body is written in the
// calculation expression language and references selected fields or earlier
// calculations as ${field_id}.
type TableCalculation struct {
	Name        string              `json:"name"`
	DisplayName string              `json:"displayName,omitempty"`
	SQL         string              `json:"sql"`
	Format      *displayfmt.Options `json:"format,omitempty"`
}

// AdditionalMetric is a metric defined inline in a query rather than in the
// catalog. It compiles identically to a catalog metric.
type AdditionalMetric struct {
	Table       string              `json:"table"`
	Name        string              `json:"name"`
	Label       string              `json:"label,omitempty"`
	Description string              `json:"description,omitempty"`
	SQL         string              `json:"sql"`
	Type        types.ValueType     `json:"type,omitempty"`
	Aggregation types.Aggregation   `json:"aggregation"`
	Percentile  float64             `json:"percentile,omitempty"`
	Format      *displayfmt.Options `json:"format,omitempty"`
}

// ID returns the field id of the additional metric.
func (m AdditionalMetric) ID() string {
	return types.NewFieldRef(m.Table, m.Name).ID()
}

// CustomDimensionType selects how a custom dimension derives its value.
type CustomDimensionType string

const (
	// CustomDimensionRange buckets a numeric base dimension into labelled
	// ranges (CASE-style mapping). Produces string values.
	CustomDimensionRange CustomDimensionType = "range"
	// CustomDimensionSQL passes a raw SQL fragment through. The fragment
	// may reference catalog fields as ${table.field}.
	CustomDimensionSQL CustomDimensionType = "sql"
)

// BinRange is one bucket of a range custom dimension. A nil bound is open.
type BinRange struct {
	From  *float64 `json:"from,omitempty"`
	To    *float64 `json:"to,omitempty"`
	Label string   `json:"label,omitempty"`
}

// CustomDimension is a computed or bucketed dimension defined inline in a
// query. Its id must not collide with any catalog field id.
type CustomDimension struct {
	ID          string              `json:"id"`
	Name        string              `json:"name,omitempty"`
	Type        CustomDimensionType `json:"type"`
	DimensionID string              `json:"dimensionId,omitempty"`
	Ranges      []BinRange          `json:"customRange,omitempty"`
	SQL         string              `json:"sql,omitempty"`
	ValueType   types.ValueType     `json:"valueType,omitempty"`
}
