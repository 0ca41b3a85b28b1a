package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/metriq/internal/dag"
	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/types"
)

// ErrFieldNotFound is returned when a field id does not resolve.
var ErrFieldNotFound = errors.New("field not found")

// ErrUnreachableTable is returned when a table has no join path from the
// explore's base table.
var ErrUnreachableTable = errors.New("table not reachable from base table")

// Field is a compiled dimension or metric. CompiledSQL is table-qualified
// and dialect-quoted; for metrics it is the unaggregated inner expression
// (the aggregation wrapper is applied by the SQL compiler, so HAVING and
// drill-down can reuse the base expression).
type Field struct {
	Ref         types.FieldRef
	Kind        types.FieldKind
	Type        types.ValueType
	Label       string
	TableLabel  string
	Description string

	RawSQL      string
	CompiledSQL string

	Hidden bool

	Aggregation types.Aggregation
	Percentile  float64
	DrillFields []string

	RequiredAttributes map[string]string

	Format *displayfmt.Options

	// TablesReferenced lists every table the compiled expression touches,
	// starting with the owning table. Drives join resolution.
	TablesReferenced []string
}

// ID returns the field's globally unique id within the explore.
func (f *Field) ID() string { return f.Ref.ID() }

// Descriptor returns the serializable projection attached to responses.
func (f *Field) Descriptor() types.FieldDescriptor {
	return types.FieldDescriptor{
		ID:          f.ID(),
		Table:       f.Ref.Table,
		Name:        f.Ref.Name,
		Label:       f.Label,
		TableLabel:  f.TableLabel,
		Kind:        f.Kind,
		Type:        f.Type,
		Aggregation: f.Aggregation,
		Hidden:      f.Hidden,
	}
}

// CompiledJoin is a join with its ON condition compiled and its table
// dependencies extracted.
type CompiledJoin struct {
	Table     string
	Type      JoinType
	SQLOn     string
	DependsOn []string
}

// Catalog is the immutable, compiled index of one explore snapshot for one
// dialect. Safe for concurrent readers.
type Catalog struct {
	exploreName string
	label       string
	baseTable   string
	dialect     *dialect.Dialect

	fields     map[string]*Field
	fieldOrder []string

	tables     map[string]*Table
	tableOrder []string

	joins     []CompiledJoin
	joinPaths map[string][]CompiledJoin
}

// Build compiles an explore definition into a Catalog. It rejects duplicate
// field ids, unknown references, join cycles, unreachable tables, and tables
// joined by more than one path.
func Build(explore *Explore, d *dialect.Dialect) (*Catalog, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	if explore.Name == "" {
		return nil, fmt.Errorf("explore has no name")
	}

	c := &Catalog{
		exploreName: explore.Name,
		label:       explore.Label,
		baseTable:   explore.BaseTable,
		dialect:     d,
		fields:      make(map[string]*Field),
		tables:      make(map[string]*Table),
		joinPaths:   make(map[string][]CompiledJoin),
	}

	for _, t := range explore.Tables {
		if _, dup := c.tables[t.Name]; dup {
			return nil, fmt.Errorf("explore %s: duplicate table %q", explore.Name, t.Name)
		}
		c.tables[t.Name] = t
		c.tableOrder = append(c.tableOrder, t.Name)
	}
	if _, ok := c.tables[explore.BaseTable]; !ok {
		return nil, fmt.Errorf("explore %s: base table %q is not defined", explore.Name, explore.BaseTable)
	}

	if err := c.compileFields(); err != nil {
		return nil, err
	}
	if err := c.compileJoins(explore.Joins); err != nil {
		return nil, err
	}
	return c, nil
}

// ExploreName returns the explore's name.
func (c *Catalog) ExploreName() string { return c.exploreName }

// Label returns the explore's display label.
func (c *Catalog) Label() string { return c.label }

// BaseTable returns the root table name.
func (c *Catalog) BaseTable() string { return c.baseTable }

// Dialect returns the dialect the catalog was compiled for.
func (c *Catalog) Dialect() *dialect.Dialect { return c.dialect }

// Resolve looks up a field by id.
func (c *Catalog) Resolve(fieldID string) (*Field, error) {
	f, ok := c.fields[fieldID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}
	return f, nil
}

// AllFields returns every field in deterministic order: tables in
// declaration order, dimensions before metrics, each in declaration order.
func (c *Catalog) AllFields() []*Field {
	fields := make([]*Field, 0, len(c.fieldOrder))
	for _, id := range c.fieldOrder {
		fields = append(fields, c.fields[id])
	}
	return fields
}

// Table returns a table definition by name.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// TableSQL returns the dialect-quoted FROM fragment for a table:
// the physical relation aliased by the table name.
func (c *Catalog) TableSQL(name string) (string, error) {
	t, ok := c.tables[name]
	if !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}
	physical := t.SQLTable
	if physical == "" {
		physical = t.Name
	}
	return fmt.Sprintf("%s AS %s", quotePhysical(c.dialect, physical), c.dialect.QuoteIdent(t.Name)), nil
}

// JoinPath returns the ordered joins required to reach a table from the base
// table. The base table itself has an empty path.
func (c *Catalog) JoinPath(table string) ([]CompiledJoin, error) {
	if table == c.baseTable {
		return nil, nil
	}
	path, ok := c.joinPaths[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnreachableTable, table)
	}
	return path, nil
}

// Joins returns every compiled join in topological order.
func (c *Catalog) Joins() []CompiledJoin { return c.joins }

// compileFields compiles every field's raw SQL into a table-qualified
// expression, resolving ${TABLE} and ${table.field} references recursively.
func (c *Catalog) compileFields() error {
	type pending struct {
		table string
		spec  FieldSpec
		kind  types.FieldKind
	}
	specs := make(map[string]pending)

	for _, tname := range c.tableOrder {
		t := c.tables[tname]
		add := func(spec FieldSpec, kind types.FieldKind) error {
			ref := types.NewFieldRef(t.Name, spec.Name)
			id := ref.ID()
			if _, dup := specs[id]; dup {
				return fmt.Errorf("explore %s: duplicate field id %q", c.exploreName, id)
			}
			specs[id] = pending{table: t.Name, spec: spec, kind: kind}
			c.fieldOrder = append(c.fieldOrder, id)
			return nil
		}
		for _, spec := range t.Dimensions {
			if err := add(spec, types.KindDimension); err != nil {
				return err
			}
		}
		for _, spec := range t.Metrics {
			if err := add(spec, types.KindMetric); err != nil {
				return err
			}
		}
	}

	compiling := make(map[string]bool)

	var compile func(id string) (*Field, error)
	compile = func(id string) (*Field, error) {
		if f, done := c.fields[id]; done {
			return f, nil
		}
		if compiling[id] {
			return nil, fmt.Errorf("explore %s: circular field reference involving %q", c.exploreName, id)
		}
		compiling[id] = true
		defer delete(compiling, id)

		p := specs[id]
		owner := c.tables[p.table]
		rawSQL := p.spec.SQL
		defaulted := rawSQL == ""
		if defaulted {
			rawSQL = "${TABLE}." + p.spec.Name
		}

		tables := []string{p.table}
		seen := map[string]bool{p.table: true}

		resolveRef := func(ref reference) (string, error) {
			if ref.field == "" {
				if !strings.EqualFold(ref.table, "TABLE") {
					return "", unknownRefError(p.table, ref)
				}
				return c.dialect.QuoteIdent(p.table), nil
			}
			targetID := types.NewFieldRef(ref.table, ref.field).ID()
			if _, known := specs[targetID]; !known {
				return "", unknownRefError(p.table, ref)
			}
			target, err := compile(targetID)
			if err != nil {
				return "", err
			}
			for _, t := range target.TablesReferenced {
				if !seen[t] {
					seen[t] = true
					tables = append(tables, t)
				}
			}
			return target.CompiledSQL, nil
		}

		var compiled string
		var err error
		if defaulted {
			// A field without SQL maps straight to its column; quote both
			// parts rather than splicing the name into the template.
			compiled = c.dialect.QuoteIdent(p.table) + "." + c.dialect.QuoteIdent(p.spec.Name)
		} else {
			compiled, err = substituteRefs(rawSQL, resolveRef)
		}
		if err != nil {
			return nil, err
		}

		valueType := p.spec.Type
		if valueType == "" {
			valueType = types.TypeString
		}
		label := p.spec.Label
		if label == "" {
			label = humanize(p.spec.Name)
		}
		tableLabel := owner.Label
		if tableLabel == "" {
			tableLabel = humanize(owner.Name)
		}

		f := &Field{
			Ref:                types.NewFieldRef(p.table, p.spec.Name),
			Kind:               p.kind,
			Type:               valueType,
			Label:              label,
			TableLabel:         tableLabel,
			Description:        p.spec.Description,
			RawSQL:             rawSQL,
			CompiledSQL:        compiled,
			Hidden:             p.spec.Hidden,
			Aggregation:        p.spec.Aggregation,
			Percentile:         p.spec.Percentile,
			DrillFields:        p.spec.DrillFields,
			RequiredAttributes: p.spec.RequiredAttributes,
			Format:             p.spec.Format,
			TablesReferenced:   tables,
		}
		if f.Kind == types.KindMetric {
			if f.Aggregation == "" {
				return nil, fmt.Errorf("metric %s has no aggregation", id)
			}
			if !f.Aggregation.Valid() {
				return nil, fmt.Errorf("metric %s has unknown aggregation %q", id, f.Aggregation)
			}
			if f.Aggregation == types.AggPercentile && (f.Percentile <= 0 || f.Percentile >= 1) {
				return nil, fmt.Errorf("metric %s needs a percentile between 0 and 1 (got %v)", id, f.Percentile)
			}
		}
		c.fields[id] = f
		return f, nil
	}

	for _, id := range c.fieldOrder {
		if _, err := compile(id); err != nil {
			return err
		}
	}
	return nil
}

// compileJoins compiles join conditions, validates the join graph, and
// precomputes the unique join path for every joined table.
func (c *Catalog) compileJoins(joins []Join) error {
	g := dag.New()
	g.AddNode(c.baseTable)

	compiledByTable := make(map[string]CompiledJoin)
	var order []string

	for _, j := range joins {
		if j.Table == c.baseTable {
			return fmt.Errorf("explore %s: base table %q cannot be joined to itself", c.exploreName, j.Table)
		}
		if _, ok := c.tables[j.Table]; !ok {
			return fmt.Errorf("explore %s: join references undefined table %q", c.exploreName, j.Table)
		}
		if _, dup := compiledByTable[j.Table]; dup {
			return fmt.Errorf("explore %s: table %q is joined by more than one path", c.exploreName, j.Table)
		}

		joinType := j.Type
		if joinType == "" {
			joinType = JoinLeft
		}

		sqlOn, err := substituteRefs(j.SQLOn, func(ref reference) (string, error) {
			if ref.field == "" {
				return "", fmt.Errorf("join on %s: ${TABLE} is not valid in join conditions", j.Table)
			}
			id := types.NewFieldRef(ref.table, ref.field).ID()
			f, err := c.Resolve(id)
			if err != nil {
				return "", fmt.Errorf("join on %s: %w", j.Table, err)
			}
			return f.CompiledSQL, nil
		})
		if err != nil {
			return err
		}

		var deps []string
		for _, t := range referencedTables(j.SQLOn, j.Table) {
			if t != j.Table {
				deps = append(deps, t)
			}
		}

		compiledByTable[j.Table] = CompiledJoin{
			Table:     j.Table,
			Type:      joinType,
			SQLOn:     sqlOn,
			DependsOn: deps,
		}
		order = append(order, j.Table)
		g.AddNode(j.Table)
	}

	for _, table := range order {
		for _, dep := range compiledByTable[table].DependsOn {
			if _, ok := c.tables[dep]; !ok {
				return fmt.Errorf("explore %s: join on %s references undefined table %q", c.exploreName, table, dep)
			}
			if dep != c.baseTable {
				if _, joined := compiledByTable[dep]; !joined {
					return fmt.Errorf("explore %s: join on %s depends on %q which is never joined", c.exploreName, table, dep)
				}
			}
			if err := g.AddDependency(table, dep); err != nil {
				return fmt.Errorf("explore %s: %w", c.exploreName, err)
			}
		}
	}

	sorted, err := g.Sort()
	if err != nil {
		return fmt.Errorf("explore %s: %w", c.exploreName, err)
	}

	for _, table := range sorted {
		if table == c.baseTable {
			continue
		}
		c.joins = append(c.joins, compiledByTable[table])
	}

	// Join path of a table = transitive dependency closure, in overall
	// join order. Uniqueness is guaranteed by the one-join-per-table rule.
	for _, table := range order {
		closure := map[string]bool{}
		var walk func(t string)
		walk = func(t string) {
			if t == c.baseTable || closure[t] {
				return
			}
			closure[t] = true
			for _, dep := range compiledByTable[t].DependsOn {
				walk(dep)
			}
		}
		walk(table)

		var path []CompiledJoin
		for _, j := range c.joins {
			if closure[j.Table] {
				path = append(path, j)
			}
		}
		c.joinPaths[table] = path
	}

	// Every non-base table must be reachable.
	for _, tname := range c.tableOrder {
		if tname == c.baseTable {
			continue
		}
		if _, ok := c.joinPaths[tname]; !ok {
			return fmt.Errorf("explore %s: %w: %s", c.exploreName, ErrUnreachableTable, tname)
		}
	}
	return nil
}

// quotePhysical quotes a possibly schema-qualified relation name.
func quotePhysical(d *dialect.Dialect, physical string) string {
	parts := strings.Split(physical, ".")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = d.QuoteIdent(p)
	}
	return strings.Join(quoted, ".")
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
