// Package validate checks a metric query against a compiled catalog and
// produces the resolved form the compiler consumes.
//
// Validation batch-collects every violation rather than stopping at the
// first, so a caller can surface all problems with a query at once.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/metriq/pkg/calc"
	"github.com/leapstack-labs/metriq/pkg/catalog"
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/metricquery"
	"github.com/leapstack-labs/metriq/pkg/types"
)

// Column is one selected output column: either a catalog field (including a
// compiled additional metric) or a custom dimension.
type Column struct {
	Field  *catalog.Field
	Custom *CustomDimension
}

// ID returns the column's output field id.
func (c Column) ID() string {
	if c.Custom != nil {
		return c.Custom.ID
	}
	return c.Field.ID()
}

// Kind returns the column's field kind.
func (c Column) Kind() types.FieldKind {
	if c.Custom != nil {
		return types.KindDimension
	}
	return c.Field.Kind
}

// Type returns the column's semantic value type.
func (c Column) Type() types.ValueType {
	if c.Custom != nil {
		return c.Custom.Type
	}
	return c.Field.Type
}

// CompiledSQL returns the column's compiled (unaggregated) expression.
func (c Column) CompiledSQL() string {
	if c.Custom != nil {
		return c.Custom.CompiledSQL
	}
	return c.Field.CompiledSQL
}

// TablesReferenced returns the tables the column's expression touches.
func (c Column) TablesReferenced() []string {
	if c.Custom != nil {
		return c.Custom.TablesReferenced
	}
	return c.Field.TablesReferenced
}

// Format returns the column's display format options, if any.
func (c Column) Format() *displayfmt.Options {
	if c.Custom != nil {
		return nil
	}
	return c.Field.Format
}

// Descriptor returns the serializable projection of the column.
func (c Column) Descriptor() types.FieldDescriptor {
	if c.Custom != nil {
		return types.FieldDescriptor{
			ID:    c.Custom.ID,
			Label: c.Custom.Label,
			Kind:  types.KindDimension,
			Type:  c.Custom.Type,
		}
	}
	return c.Field.Descriptor()
}

// CustomDimension is a validated, compiled custom dimension.
type CustomDimension struct {
	ID               string
	Label            string
	Type             types.ValueType
	CompiledSQL      string
	TablesReferenced []string
}

// Calculation is a validated table calculation with its parsed expression.
type Calculation struct {
	Name         string
	DisplayName  string
	Expr         calc.Expr
	Format       *displayfmt.Options
	Dependencies []string
}

// Validated is the resolved form of a metric query: every field reference
// bound to a catalog field or compiled inline definition, calculations
// dependency-ordered, sort directions defaulted.
type Validated struct {
	Query   *metricquery.MetricQuery
	Catalog *catalog.Catalog

	// Dimensions and Metrics hold the selected columns in request order.
	Dimensions []Column
	Metrics    []Column

	// Calculations are ordered so each appears after everything it references.
	Calculations []Calculation

	Filters *metricquery.FilterGroup
	// FilterFields lists the distinct non-calculation fields the filter tree
	// references, in first-appearance order. May include unselected fields.
	FilterFields []Column

	Sorts []metricquery.SortField
	Limit int

	// JoinTables are extra tables the query forces into join resolution,
	// deduplicated and in request order.
	JoinTables []string

	// Location is the resolved query timezone. Nil when the query sets none,
	// so downstream formatting can fall back to its own default.
	Location *time.Location
}

// Column returns the selected column with the given output field id, if any.
func (v *Validated) Column(fieldID string) (Column, bool) {
	for _, c := range v.Dimensions {
		if c.ID() == fieldID {
			return c, true
		}
	}
	for _, c := range v.Metrics {
		if c.ID() == fieldID {
			return c, true
		}
	}
	return Column{}, false
}

// Calculation returns the validated calculation with the given name, if any.
func (v *Validated) Calculation(name string) (Calculation, bool) {
	for _, tc := range v.Calculations {
		if tc.Name == name {
			return tc, true
		}
	}
	return Calculation{}, false
}

// Validate checks the query against the catalog. On failure the returned
// error is an Errors value listing every violation found.
func Validate(q *metricquery.MetricQuery, cat *catalog.Catalog) (*Validated, error) {
	list := &errorList{}

	if q.ExploreName != cat.ExploreName() {
		list.add("", "query targets explore %q but catalog is for %q", q.ExploreName, cat.ExploreName())
	}
	if len(q.Dimensions) == 0 && len(q.Metrics) == 0 {
		list.add("", "query selects no dimensions and no metrics")
	}

	v := &Validated{Query: q, Catalog: cat, Limit: q.Limit}

	additional := compileAdditionalMetrics(q, cat, list)
	custom := compileCustomDimensions(q, cat, list)

	selected := make(map[string]Column)
	selectColumn := func(c Column) {
		selected[c.ID()] = c
	}

	// Dimensions: catalog dimensions or custom dimension ids.
	for _, id := range q.Dimensions {
		if cd, ok := custom[id]; ok {
			col := Column{Custom: cd}
			v.Dimensions = append(v.Dimensions, col)
			selectColumn(col)
			continue
		}
		f, err := cat.Resolve(id)
		if err != nil {
			list.add(id, "unknown field %q", id)
			continue
		}
		if f.Kind != types.KindDimension {
			list.add(id, "field %q is a %s, not a dimension", id, f.Kind)
			continue
		}
		col := Column{Field: f}
		v.Dimensions = append(v.Dimensions, col)
		selectColumn(col)
	}
	unlisted := make(map[string]bool)
	for _, cd := range q.CustomDimensions {
		if _, ok := custom[cd.ID]; !ok || unlisted[cd.ID] {
			continue
		}
		if !containsString(q.Dimensions, cd.ID) {
			unlisted[cd.ID] = true
			list.add(cd.ID, "custom dimension %q is defined but not listed in dimensions", cd.ID)
		}
	}

	// Metrics: catalog metrics or additional metric ids.
	for _, id := range q.Metrics {
		if am, ok := additional[id]; ok {
			col := Column{Field: am}
			v.Metrics = append(v.Metrics, col)
			selectColumn(col)
			continue
		}
		f, err := cat.Resolve(id)
		if err != nil {
			list.add(id, "unknown field %q", id)
			continue
		}
		if f.Kind != types.KindMetric {
			list.add(id, "field %q is a %s, not a metric", id, f.Kind)
			continue
		}
		col := Column{Field: f}
		v.Metrics = append(v.Metrics, col)
		selectColumn(col)
	}
	for _, m := range q.AdditionalMetrics {
		id := m.ID()
		if _, ok := additional[id]; !ok || unlisted[id] {
			continue
		}
		if !containsString(q.Metrics, id) {
			unlisted[id] = true
			list.add(id, "additional metric %q is defined but not listed in metrics", id)
		}
	}

	calcNames := validateCalculations(q, v, selected, list)

	validateFilters(q, v, cat, additional, custom, list)

	// Sorts reference output fields only: selected columns or calculations.
	for i, s := range q.Sorts {
		if s.Direction == "" {
			s.Direction = types.SortAscending
		}
		if s.Direction != types.SortAscending && s.Direction != types.SortDescending {
			list.add(s.FieldID, "sort on %q has unknown direction %q", s.FieldID, s.Direction)
			continue
		}
		_, isSelected := selected[s.FieldID]
		if !isSelected && !calcNames[s.FieldID] {
			list.add(s.FieldID, "sort references %q which is not part of the query output", s.FieldID)
			continue
		}
		q.Sorts[i] = s
		v.Sorts = append(v.Sorts, s)
	}

	for _, tname := range q.JoinTables {
		if _, ok := cat.Table(tname); !ok {
			list.add("", "join table %q is not part of the explore", tname)
			continue
		}
		if !containsString(v.JoinTables, tname) {
			v.JoinTables = append(v.JoinTables, tname)
		}
	}

	if q.Limit < 0 {
		list.add("", "limit must not be negative (got %d)", q.Limit)
	}

	if q.Timezone != "" {
		loc, err := time.LoadLocation(q.Timezone)
		if err != nil {
			list.add("", "unknown timezone %q", q.Timezone)
		} else {
			v.Location = loc
		}
	}

	if err := list.err(); err != nil {
		return nil, err
	}
	return v, nil
}

func compileAdditionalMetrics(q *metricquery.MetricQuery, cat *catalog.Catalog, list *errorList) map[string]*catalog.Field {
	out := make(map[string]*catalog.Field)
	for _, m := range q.AdditionalMetrics {
		id := m.ID()
		if m.Name == "" || m.Table == "" {
			list.add(id, "additional metric must set both table and name")
			continue
		}
		if _, err := cat.Resolve(id); err == nil {
			list.add(id, "additional metric %q collides with a catalog field", id)
			continue
		}
		if _, dup := out[id]; dup {
			list.add(id, "additional metric %q is defined twice", id)
			continue
		}
		if !m.Aggregation.Valid() {
			list.add(id, "additional metric %q has unknown aggregation %q", id, m.Aggregation)
			continue
		}
		if m.Aggregation == types.AggPercentile && (m.Percentile <= 0 || m.Percentile >= 1) {
			list.add(id, "additional metric %q needs a percentile between 0 and 1", id)
			continue
		}
		if strings.TrimSpace(m.SQL) == "" {
			list.add(id, "additional metric %q has no SQL", id)
			continue
		}

		compiled, tables, err := cat.CompileInline(m.SQL, m.Table)
		if err != nil {
			list.add(id, "additional metric %q: %v", id, err)
			continue
		}

		valueType := m.Type
		if valueType == "" {
			valueType = types.TypeNumber
		}
		label := m.Label
		if label == "" {
			label = humanize(m.Name)
		}
		out[id] = &catalog.Field{
			Ref:              types.NewFieldRef(m.Table, m.Name),
			Kind:             types.KindMetric,
			Type:             m.Aggregation.ResultType(valueType),
			Label:            label,
			Description:      m.Description,
			RawSQL:           m.SQL,
			CompiledSQL:      compiled,
			Aggregation:      m.Aggregation,
			Percentile:       m.Percentile,
			Format:           m.Format,
			TablesReferenced: tables,
		}
	}
	return out
}

func compileCustomDimensions(q *metricquery.MetricQuery, cat *catalog.Catalog, list *errorList) map[string]*CustomDimension {
	out := make(map[string]*CustomDimension)
	for _, cd := range q.CustomDimensions {
		if cd.ID == "" {
			list.add("", "custom dimension has no id")
			continue
		}
		if _, err := cat.Resolve(cd.ID); err == nil {
			list.add(cd.ID, "custom dimension %q collides with a catalog field", cd.ID)
			continue
		}
		if _, dup := out[cd.ID]; dup {
			list.add(cd.ID, "custom dimension %q is defined twice", cd.ID)
			continue
		}

		label := cd.Name
		if label == "" {
			label = cd.ID
		}

		switch cd.Type {
		case metricquery.CustomDimensionRange:
			base, err := cat.Resolve(cd.DimensionID)
			if err != nil {
				list.add(cd.ID, "custom dimension %q buckets unknown field %q", cd.ID, cd.DimensionID)
				continue
			}
			if base.Kind != types.KindDimension || !base.Type.IsNumeric() {
				list.add(cd.ID, "custom dimension %q must bucket a numeric dimension, got %s %q", cd.ID, base.Kind, cd.DimensionID)
				continue
			}
			if len(cd.Ranges) == 0 {
				list.add(cd.ID, "custom dimension %q declares no ranges", cd.ID)
				continue
			}
			out[cd.ID] = &CustomDimension{
				ID:               cd.ID,
				Label:            label,
				Type:             types.TypeString,
				CompiledSQL:      rangeCaseSQL(cat, base.CompiledSQL, cd.Ranges),
				TablesReferenced: base.TablesReferenced,
			}

		case metricquery.CustomDimensionSQL:
			if strings.TrimSpace(cd.SQL) == "" {
				list.add(cd.ID, "custom dimension %q has no SQL", cd.ID)
				continue
			}
			owner := cat.BaseTable()
			if cd.DimensionID != "" {
				if base, err := cat.Resolve(cd.DimensionID); err == nil {
					owner = base.Ref.Table
				}
			}
			compiled, tables, err := cat.CompileInline(cd.SQL, owner)
			if err != nil {
				list.add(cd.ID, "custom dimension %q: %v", cd.ID, err)
				continue
			}
			valueType := cd.ValueType
			if valueType == "" {
				valueType = types.TypeString
			}
			out[cd.ID] = &CustomDimension{
				ID:               cd.ID,
				Label:            label,
				Type:             valueType,
				CompiledSQL:      compiled,
				TablesReferenced: tables,
			}

		default:
			list.add(cd.ID, "custom dimension %q has unknown type %q", cd.ID, cd.Type)
		}
	}
	return out
}

// rangeCaseSQL renders a bucketed dimension as a CASE expression over the
// base expression. Buckets are half-open [from, to); nil bounds are open.
func rangeCaseSQL(cat *catalog.Catalog, baseSQL string, ranges []metricquery.BinRange) string {
	d := cat.Dialect()
	var b strings.Builder
	b.WriteString("CASE")
	for _, r := range ranges {
		var conds []string
		if r.From != nil {
			conds = append(conds, fmt.Sprintf("%s >= %v", baseSQL, *r.From))
		}
		if r.To != nil {
			conds = append(conds, fmt.Sprintf("%s < %v", baseSQL, *r.To))
		}
		label := r.Label
		if label == "" {
			label = rangeLabel(r)
		}
		if len(conds) == 0 {
			b.WriteString(" WHEN " + baseSQL + " IS NOT NULL THEN " + d.EscapeString(label))
			continue
		}
		b.WriteString(" WHEN " + strings.Join(conds, " AND ") + " THEN " + d.EscapeString(label))
	}
	b.WriteString(" ELSE NULL END")
	return b.String()
}

func rangeLabel(r metricquery.BinRange) string {
	switch {
	case r.From != nil && r.To != nil:
		return fmt.Sprintf("%v-%v", *r.From, *r.To)
	case r.From != nil:
		return fmt.Sprintf(">= %v", *r.From)
	case r.To != nil:
		return fmt.Sprintf("< %v", *r.To)
	default:
		return "all"
	}
}

// validateCalculations parses every table calculation and checks its
// references. A calculation may only reference selected fields or
// calculations declared before it, so declaration order is already the
// evaluation order. Returns the set of valid names.
func validateCalculations(q *metricquery.MetricQuery, v *Validated, selected map[string]Column, list *errorList) map[string]bool {
	names := make(map[string]bool)
	declared := make(map[string]int)
	parsed := make(map[string]Calculation)

	for i, tc := range q.TableCalculations {
		if tc.Name == "" {
			list.add("", "table calculation has no name")
			continue
		}
		if names[tc.Name] {
			list.add(tc.Name, "table calculation %q is defined twice", tc.Name)
			continue
		}
		if _, clash := selected[tc.Name]; clash {
			list.add(tc.Name, "table calculation %q collides with a selected field", tc.Name)
			continue
		}
		names[tc.Name] = true
		declared[tc.Name] = i

		expr, err := calc.Parse(tc.SQL)
		if err != nil {
			list.add(tc.Name, "table calculation %q: %v", tc.Name, err)
			continue
		}
		parsed[tc.Name] = Calculation{
			Name:         tc.Name,
			DisplayName:  tc.DisplayName,
			Expr:         expr,
			Format:       tc.Format,
			Dependencies: calc.ReferencedFields(expr),
		}
	}

	for i, tc := range q.TableCalculations {
		pc, ok := parsed[tc.Name]
		if !ok || declared[tc.Name] != i {
			continue
		}
		valid := true
		for _, dep := range pc.Dependencies {
			if _, ok := selected[dep]; ok {
				continue
			}
			if !names[dep] {
				list.add(tc.Name, "table calculation %q references %q which is neither selected nor another calculation", tc.Name, dep)
				valid = false
				continue
			}
			if declared[dep] >= i {
				list.add(tc.Name, "table calculation %q references %q before it is declared", tc.Name, dep)
				valid = false
			}
		}
		if valid {
			v.Calculations = append(v.Calculations, pc)
		}
	}
	return names
}

// validateFilters walks the filter tree, resolving each condition's target
// and checking operator compatibility and value arity. Filters may reference
// fields that are not selected.
func validateFilters(q *metricquery.MetricQuery, v *Validated, cat *catalog.Catalog,
	additional map[string]*catalog.Field, custom map[string]*CustomDimension, list *errorList) {

	if q.Filters == nil {
		return
	}
	v.Filters = q.Filters

	seen := make(map[string]bool)
	q.Filters.Walk(func(cond *metricquery.FilterCondition) {
		var col Column
		if am, ok := additional[cond.FieldID]; ok {
			col = Column{Field: am}
		} else if cd, ok := custom[cond.FieldID]; ok {
			col = Column{Custom: cd}
		} else {
			f, err := cat.Resolve(cond.FieldID)
			if err != nil {
				list.add(cond.FieldID, "filter references unknown field %q", cond.FieldID)
				return
			}
			col = Column{Field: f}
		}

		if !cond.Operator.Valid() {
			list.add(cond.FieldID, "filter on %q has unknown operator %q", cond.FieldID, cond.Operator)
			return
		}
		if !cond.Operator.AppliesTo(col.Type()) {
			list.add(cond.FieldID, "operator %q does not apply to %s field %q", cond.Operator, col.Type(), cond.FieldID)
			return
		}
		min, max := cond.Operator.ValueBounds()
		n := len(cond.Values)
		if n < min || (max >= 0 && n > max) {
			list.add(cond.FieldID, "operator %q on %q expects %s, got %d", cond.Operator, cond.FieldID, boundsWord(min, max), n)
			return
		}

		if !seen[col.ID()] {
			seen[col.ID()] = true
			v.FilterFields = append(v.FilterFields, col)
		}
	})
}

func boundsWord(min, max int) string {
	switch {
	case min == max:
		return fmt.Sprintf("%d value(s)", min)
	case max < 0:
		return fmt.Sprintf("at least %d value(s)", min)
	default:
		return fmt.Sprintf("between %d and %d values", min, max)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// humanize turns a snake_case identifier into a display label.
func humanize(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
