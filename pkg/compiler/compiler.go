// Package compiler turns a validated metric query into a single dialect SQL
// statement: join resolution, select ordering, aggregation wrapping,
// filter splitting, grouping, sorting and table-calculation pushdown.
//
// Compilation is pure and deterministic: the same resolved query and dialect
// always produce byte-identical SQL and an identical parameter list. All
// dialect capability gaps surface here as *CompileError, never at execution
// time.
package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/metriq/pkg/calc"
	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/metricquery"
	"github.com/leapstack-labs/metriq/pkg/types"
	"github.com/leapstack-labs/metriq/pkg/validate"
)

// baseAlias is the subquery alias used when table calculations are pushed
// into SQL as an outer select over the aggregated result.
const baseAlias = "metriq_base"

// OutputColumn describes one column of the compiled statement's result set,
// in select order. Table calculations evaluated after execution also appear
// here, flagged by Computed.
type OutputColumn struct {
	ID         string
	Kind       types.FieldKind
	Type       types.ValueType
	Descriptor types.FieldDescriptor
	Format     *displayfmt.Options

	// Computed marks a table calculation the warehouse does not produce;
	// the result mapper evaluates it row-locally after execution.
	Computed bool
}

// CompiledQuery is the executable form of a metric query.
type CompiledQuery struct {
	SQL    string
	Params []any

	// Columns lists every output column in order: dimensions, metrics, then
	// table calculations.
	Columns []OutputColumn

	// PostCalculations are the table calculations the mapper must evaluate
	// row-locally, ordered so dependencies come first.
	PostCalculations []validate.Calculation

	// Location is the query timezone for temporal display formatting.
	Location *time.Location
}

// Column returns the output column with the given id, if present.
func (q *CompiledQuery) Column(id string) (OutputColumn, bool) {
	for _, c := range q.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return OutputColumn{}, false
}

// Compile renders the resolved query against the catalog's dialect.
func Compile(r *Resolved) (*CompiledQuery, error) {
	cat := r.Catalog
	d := cat.Dialect()

	out := &CompiledQuery{Location: r.Location}

	// Select list: dimensions in request order, then metrics.
	var selects []string
	aliases := make(map[string]string)

	for _, c := range r.Dimensions {
		expr := c.CompiledSQL()
		if c.Type() == types.TypeTimestamp && r.Query.Timezone != "" {
			expr = d.ConvertTimezone(expr, r.Query.Timezone)
		}
		alias := d.QuoteIdent(c.ID())
		aliases[c.ID()] = alias
		selects = append(selects, expr+" AS "+alias)
		out.Columns = append(out.Columns, outputColumn(c))
	}

	for _, c := range r.Metrics {
		f := c.Field
		agg, err := d.RenderAggregate(f.Aggregation, f.CompiledSQL, f.Percentile)
		if err != nil {
			return nil, compileErr(d.Name, f.ID(), "%v", err)
		}
		alias := d.QuoteIdent(f.ID())
		aliases[f.ID()] = alias
		selects = append(selects, agg+" AS "+alias)
		out.Columns = append(out.Columns, outputColumn(c))
	}

	// FROM and joins, in resolved order.
	fromSQL, err := cat.TableSQL(cat.BaseTable())
	if err != nil {
		return nil, compileErr(d.Name, "", "%v", err)
	}
	joinLines := make([]string, 0, len(r.Joins))
	for _, j := range r.Joins {
		tableSQL, err := cat.TableSQL(j.Table)
		if err != nil {
			return nil, compileErr(d.Name, "", "%v", err)
		}
		joinLines = append(joinLines, fmt.Sprintf("%s %s ON %s", j.Type, tableSQL, j.SQLOn))
	}

	// Filters: dimension conditions to WHERE, metric conditions to HAVING.
	targets, err := filterTargets(r, d)
	if err != nil {
		return nil, err
	}
	whereNodes, havingNodes, err := splitFilters(r.Filters, targets)
	if err != nil {
		return nil, compileErr(d.Name, "", "%v", err)
	}

	fr := &filterRenderer{d: d, targets: targets}
	whereSQL, err := renderPredicates(fr, whereNodes)
	if err != nil {
		return nil, compileErr(d.Name, "", "%v", err)
	}
	havingSQL, err := renderPredicates(fr, havingNodes)
	if err != nil {
		return nil, compileErr(d.Name, "", "%v", err)
	}
	if havingSQL != "" && len(r.Metrics) == 0 {
		return nil, compileErr(d.Name, "", "metric filters require at least one selected metric")
	}

	// Table calculations: push what the dialect can express, keep the rest
	// for row-local evaluation. A calculation referencing another calculation
	// always evaluates row-locally (aliases of sibling derived columns are
	// not addressable in the same select).
	var pushed []validate.Calculation
	for _, tc := range r.Calculations {
		pushable := calc.Pushable(tc.Expr, d)
		for _, dep := range tc.Dependencies {
			if _, isCalc := r.Calculation(dep); isCalc {
				pushable = false
			}
		}
		if pushable {
			pushed = append(pushed, tc)
		} else {
			out.PostCalculations = append(out.PostCalculations, tc)
		}
		out.Columns = append(out.Columns, calcColumn(tc, !pushable))
	}

	// Sorting must target a warehouse-produced column: a selected field or a
	// pushed calculation. Sorting on a row-local calculation has no SQL
	// rendering.
	orderParts := make([]string, 0, len(r.Sorts))
	for _, s := range r.Sorts {
		if _, ok := aliases[s.FieldID]; !ok {
			isPushed := false
			for _, tc := range pushed {
				if tc.Name == s.FieldID {
					isPushed = true
					break
				}
			}
			if !isPushed {
				return nil, compileErr(d.Name, s.FieldID,
					"cannot sort by table calculation %q: it is not expressible in SQL for this dialect", s.FieldID)
			}
		}
		orderParts = append(orderParts, d.QuoteIdent(s.FieldID)+" "+string(s.Direction))
	}

	// Assemble the aggregated statement.
	var b strings.Builder
	b.WriteString("SELECT\n  ")
	b.WriteString(strings.Join(selects, ",\n  "))
	b.WriteString("\nFROM ")
	b.WriteString(fromSQL)
	for _, j := range joinLines {
		b.WriteString("\n")
		b.WriteString(j)
	}
	if whereSQL != "" {
		b.WriteString("\nWHERE ")
		b.WriteString(whereSQL)
	}
	if len(r.Metrics) > 0 && len(r.Dimensions) > 0 {
		positions := make([]string, len(r.Dimensions))
		for i := range r.Dimensions {
			positions[i] = strconv.Itoa(i + 1)
		}
		b.WriteString("\nGROUP BY ")
		b.WriteString(strings.Join(positions, ", "))
	}
	if havingSQL != "" {
		b.WriteString("\nHAVING ")
		b.WriteString(havingSQL)
	}

	sql := b.String()

	// Pushed calculations wrap the aggregated statement so calculation
	// expressions can reference output aliases.
	if len(pushed) > 0 {
		aliasFor := func(fieldID string) (string, error) {
			alias, ok := aliases[fieldID]
			if !ok {
				return "", fmt.Errorf("calculation references %q which is not a selected field", fieldID)
			}
			return alias, nil
		}
		calcSelects := make([]string, 0, len(pushed))
		for _, tc := range pushed {
			rendered, err := calc.RenderSQL(tc.Expr, d, aliasFor)
			if err != nil {
				return nil, compileErr(d.Name, tc.Name, "%v", err)
			}
			calcSelects = append(calcSelects, rendered+" AS "+d.QuoteIdent(tc.Name))
		}
		sql = fmt.Sprintf("SELECT\n  *,\n  %s\nFROM (\n%s\n) AS %s",
			strings.Join(calcSelects, ",\n  "), sql, d.QuoteIdent(baseAlias))
	}

	if len(orderParts) > 0 {
		sql += "\nORDER BY " + strings.Join(orderParts, ", ")
	}
	if r.Limit > 0 {
		sql += "\n" + d.LimitClause(r.Limit)
	}

	out.SQL = sql
	out.Params = fr.params
	return out, nil
}

// renderPredicates renders a slice of filter nodes joined by AND.
func renderPredicates(fr *filterRenderer, nodes []metricquery.FilterNode) (string, error) {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s, err := fr.renderNode(n)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " AND "), nil
}

// filterTargets builds the condition target map: filtered dimensions compare
// against their compiled expression, filtered metrics against the aggregated
// expression.
func filterTargets(r *Resolved, d *dialect.Dialect) (map[string]filterTarget, error) {
	targets := make(map[string]filterTarget, len(r.FilterFields))
	for _, c := range r.FilterFields {
		t := filterTarget{sql: c.CompiledSQL(), kind: c.Kind()}
		if c.Kind() == types.KindMetric {
			agg, err := d.RenderAggregate(c.Field.Aggregation, c.Field.CompiledSQL, c.Field.Percentile)
			if err != nil {
				return nil, compileErr(d.Name, c.ID(), "%v", err)
			}
			t.sql = agg
		}
		targets[c.ID()] = t
	}
	return targets, nil
}

func outputColumn(c validate.Column) OutputColumn {
	return OutputColumn{
		ID:         c.ID(),
		Kind:       c.Kind(),
		Type:       c.Type(),
		Descriptor: c.Descriptor(),
		Format:     c.Format(),
	}
}

func calcColumn(tc validate.Calculation, computed bool) OutputColumn {
	label := tc.DisplayName
	if label == "" {
		label = tc.Name
	}
	return OutputColumn{
		ID:   tc.Name,
		Kind: types.KindTableCalculation,
		Type: types.TypeNumber,
		Descriptor: types.FieldDescriptor{
			ID:    tc.Name,
			Name:  tc.Name,
			Label: label,
			Kind:  types.KindTableCalculation,
			Type:  types.TypeNumber,
		},
		Format:   tc.Format,
		Computed: computed,
	}
}
