// Package drill derives "underlying data" queries: given an aggregated
// result cell and its source row, it builds a new flat, ungrouped metric
// query selecting the dimensions that determined the cell's grouping, with
// filters pinning each dimension to the source row's raw value.
//
// The derived query re-enters the normal pipeline at validation; drill never
// compiles SQL itself.
package drill

import (
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/catalog"
	"github.com/leapstack-labs/metriq/pkg/metricquery"
	"github.com/leapstack-labs/metriq/pkg/types"
)

// DefaultLimit bounds derived queries that do not inherit a limit.
const DefaultLimit = 500

// Request describes the cell being drilled into.
type Request struct {
	// Item is the descriptor of the clicked field (usually a metric).
	Item types.FieldDescriptor `json:"item"`
	// Value is the clicked cell's value.
	Value types.ResultValue `json:"value"`
	// FieldValues holds the full source row, keyed by field id.
	FieldValues map[string]types.ResultValue `json:"fieldValues"`
	// DimensionIDs optionally overrides which dimensions to pin; when empty
	// the original query's dimension list is used.
	DimensionIDs []string `json:"dimensionsIds,omitempty"`
}

// Resolve builds the underlying-data query for a drill request. The result
// selects dimensions only: the pinned grouping dimensions plus any drill
// dimensions configured on the clicked metric. The tables the clicked
// metric's expression references are forced into the derived query's join
// context, so a metric on a joined table keeps that join even when no pinned
// dimension or drill field touches it.
func Resolve(original *metricquery.MetricQuery, cat *catalog.Catalog, req *Request) (*metricquery.MetricQuery, error) {
	pinned := req.DimensionIDs
	if len(pinned) == 0 {
		pinned = original.Dimensions
	}

	var conditions []metricquery.FilterNode
	selected := make(map[string]bool)
	var dimensions []string

	for _, id := range pinned {
		f, err := cat.Resolve(id)
		if err != nil {
			return nil, fmt.Errorf("drill-down: %w", err)
		}
		if f.Kind != types.KindDimension {
			return nil, fmt.Errorf("drill-down: %q is not a dimension", id)
		}
		if !selected[id] {
			selected[id] = true
			dimensions = append(dimensions, id)
		}

		cell, ok := req.FieldValues[id]
		if !ok {
			return nil, fmt.Errorf("drill-down: source row has no value for %q", id)
		}
		conditions = append(conditions, pinCondition(id, cell))
	}

	// Extra dimensions configured on the clicked metric widen the fetch but
	// are not pinned. The metric itself is not selected, so its tables are
	// carried as forced joins to keep the underlying row set restricted the
	// way the aggregation was.
	var joinTables []string
	if req.Item.Kind == types.KindMetric {
		if f, err := cat.Resolve(req.Item.ID); err == nil {
			for _, extra := range f.DrillFields {
				if _, err := cat.Resolve(extra); err != nil {
					return nil, fmt.Errorf("drill-down: metric %s: %w", req.Item.ID, err)
				}
				if !selected[extra] {
					selected[extra] = true
					dimensions = append(dimensions, extra)
				}
			}
			joinTables = f.TablesReferenced
		}
	}

	if len(dimensions) == 0 {
		return nil, fmt.Errorf("drill-down: no dimensions to pin")
	}

	q := &metricquery.MetricQuery{
		ExploreName: original.ExploreName,
		Dimensions:  dimensions,
		JoinTables:  joinTables,
		Limit:       DefaultLimit,
		Timezone:    original.Timezone,
	}
	if original.Limit > 0 {
		q.Limit = original.Limit
	}
	if len(conditions) > 0 {
		q.Filters = metricquery.And(conditions...)
	}
	return q, nil
}

// pinCondition pins one dimension to a cell's raw value. A null raw value
// pins with the isNull operator, since equality against NULL matches nothing.
func pinCondition(fieldID string, cell types.ResultValue) *metricquery.FilterCondition {
	if cell.Raw == nil {
		return &metricquery.FilterCondition{
			FieldID:  fieldID,
			Operator: metricquery.OpIsNull,
		}
	}
	return &metricquery.FilterCondition{
		FieldID:  fieldID,
		Operator: metricquery.OpEquals,
		Values:   []any{cell.Raw},
	}
}
