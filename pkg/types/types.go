// Package types defines the shared leaf types of the metric query engine:
// field references, semantic value types, aggregations, and result values.
//
// Every other package depends on this one; it depends on nothing but the
// standard library.
package types

import (
	"fmt"
	"strings"
	"time"
)

// ValueType is the semantic type of a field's values.
type ValueType string

// Semantic value types.
const (
	TypeString    ValueType = "string"
	TypeNumber    ValueType = "number"
	TypeBoolean   ValueType = "boolean"
	TypeDate      ValueType = "date"
	TypeTimestamp ValueType = "timestamp"
)

// IsTemporal reports whether the type is date-like.
func (t ValueType) IsTemporal() bool {
	return t == TypeDate || t == TypeTimestamp
}

// IsNumeric reports whether the type is number-like.
func (t ValueType) IsNumeric() bool {
	return t == TypeNumber
}

// Valid reports whether t is one of the known value types.
func (t ValueType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeTimestamp:
		return true
	}
	return false
}

// FieldKind distinguishes groupable fields from aggregated ones.
type FieldKind string

const (
	// KindDimension is a non-aggregated field (groupable, filterable).
	KindDimension FieldKind = "dimension"
	// KindMetric is an aggregated field (SUM, COUNT, ...).
	KindMetric FieldKind = "metric"
	// KindTableCalculation is a named expression over already-selected fields.
	KindTableCalculation FieldKind = "table_calculation"
)

// Aggregation is the aggregation applied by a metric.
type Aggregation string

// Metric aggregation kinds.
const (
	AggSum           Aggregation = "sum"
	AggCount         Aggregation = "count"
	AggCountDistinct Aggregation = "count_distinct"
	AggAvg           Aggregation = "average"
	AggMin           Aggregation = "min"
	AggMax           Aggregation = "max"
	AggMedian        Aggregation = "median"
	AggPercentile    Aggregation = "percentile"
)

// Valid reports whether a is a known aggregation.
func (a Aggregation) Valid() bool {
	switch a {
	case AggSum, AggCount, AggCountDistinct, AggAvg, AggMin, AggMax, AggMedian, AggPercentile:
		return true
	}
	return false
}

// ResultType returns the value type produced by the aggregation over a field
// of the given input type. Counts are always numeric; MIN/MAX preserve the
// input type.
func (a Aggregation) ResultType(input ValueType) ValueType {
	switch a {
	case AggMin, AggMax:
		return input
	default:
		return TypeNumber
	}
}

// SortDirection is the direction of an ORDER BY entry.
type SortDirection string

const (
	SortAscending  SortDirection = "ASC"
	SortDescending SortDirection = "DESC"
)

// FieldRef is a validated reference to a field in an explore's catalog.
// A zero FieldRef is invalid; refs are produced by catalog resolution or
// query validation, never constructed from raw user input elsewhere.
type FieldRef struct {
	Table string
	Name  string
}

// NewFieldRef builds a ref from its parts.
func NewFieldRef(table, name string) FieldRef {
	return FieldRef{Table: table, Name: name}
}

// ID returns the globally unique field id within an explore: "table_name".
func (r FieldRef) ID() string {
	return r.Table + "_" + r.Name
}

// String implements fmt.Stringer.
func (r FieldRef) String() string { return r.ID() }

// IsZero reports whether the ref is unset.
func (r FieldRef) IsZero() bool { return r.Table == "" && r.Name == "" }

// SplitFieldID splits a "table_name" field id against a known table name.
// Field ids are not self-delimiting (table names may contain underscores),
// so callers must supply the owning table.
func SplitFieldID(fieldID, table string) (FieldRef, error) {
	prefix := table + "_"
	if !strings.HasPrefix(fieldID, prefix) || len(fieldID) == len(prefix) {
		return FieldRef{}, fmt.Errorf("field id %q does not belong to table %q", fieldID, table)
	}
	return FieldRef{Table: table, Name: strings.TrimPrefix(fieldID, prefix)}, nil
}

// ResultValue pairs a warehouse-native raw value with its display string.
// Raw preserves the native type (number, string, time.Time, bool, nil);
// Formatted is computed from the field's format rules.
type ResultValue struct {
	Raw       any    `json:"raw"`
	Formatted string `json:"formatted"`
}

// CacheMetadata describes whether a result was served from a cache.
// The core never populates it itself; it is a pass-through field owned by
// an external caching collaborator.
type CacheMetadata struct {
	CacheHit bool           `json:"cacheHit"`
	CacheAge *time.Duration `json:"cacheAge,omitempty"`
}

// FieldDescriptor is the serializable projection of a field attached to
// query responses so clients can label and type columns.
type FieldDescriptor struct {
	ID          string      `json:"id"`
	Table       string      `json:"table"`
	Name        string      `json:"name"`
	Label       string      `json:"label"`
	TableLabel  string      `json:"tableLabel,omitempty"`
	Kind        FieldKind   `json:"fieldType"`
	Type        ValueType   `json:"type"`
	Aggregation Aggregation `json:"aggregation,omitempty"`
	Hidden      bool        `json:"hidden,omitempty"`
}
