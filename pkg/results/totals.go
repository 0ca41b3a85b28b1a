package results

import (
	"github.com/leapstack-labs/metriq/pkg/compiler"
	"github.com/leapstack-labs/metriq/pkg/types"
	"github.com/leapstack-labs/metriq/pkg/validate"
)

// Totals sums the additive metric columns of a materialized result. Only
// SUM and COUNT aggregations are additive across grouped rows; other metrics
// are omitted (averaging averages would be wrong).
func Totals(q *compiler.CompiledQuery, v *validate.Validated, rows []Row) map[string]float64 {
	additive := make(map[string]bool)
	for _, c := range v.Metrics {
		switch c.Field.Aggregation {
		case types.AggSum, types.AggCount:
			additive[c.ID()] = true
		}
	}
	if len(additive) == 0 {
		return nil
	}

	totals := make(map[string]float64, len(additive))
	for _, row := range rows {
		for id := range additive {
			if f, ok := toFloat(row[id].Raw); ok {
				totals[id] += f
			}
		}
	}
	return totals
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
