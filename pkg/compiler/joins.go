package compiler

import (
	"fmt"

	"github.com/leapstack-labs/metriq/internal/dag"
	"github.com/leapstack-labs/metriq/pkg/catalog"
	"github.com/leapstack-labs/metriq/pkg/validate"
)

// Resolved is a validated query with its join set resolved: the minimal,
// deterministically ordered joins needed to reach every referenced table.
type Resolved struct {
	*validate.Validated

	// Joins are ordered so each join appears after every table its condition
	// depends on. Independent joins keep the order in which the query first
	// referenced their tables.
	Joins []catalog.CompiledJoin
}

// ResolveJoins computes the join set for a validated query. Every table
// referenced by a selected column or a filter must be reachable from the
// explore's base table; the catalog guarantees each reachable table has
// exactly one join path.
func ResolveJoins(v *validate.Validated) (*Resolved, error) {
	cat := v.Catalog
	base := cat.BaseTable()

	// Needed tables in first-reference order: selected dimensions, then
	// metrics, then filter fields, then explicitly forced tables. Sorts only
	// reference selected columns, so they introduce no tables of their own.
	var needed []string
	seen := map[string]bool{base: true}
	note := func(tables []string) {
		for _, t := range tables {
			if !seen[t] {
				seen[t] = true
				needed = append(needed, t)
			}
		}
	}
	for _, c := range v.Dimensions {
		note(c.TablesReferenced())
	}
	for _, c := range v.Metrics {
		note(c.TablesReferenced())
	}
	for _, c := range v.FilterFields {
		note(c.TablesReferenced())
	}
	note(v.JoinTables)

	// Union of join paths, keeping first-reference order for the tables the
	// query names and splicing in path intermediates as they appear.
	joinByTable := make(map[string]catalog.CompiledJoin)
	g := dag.New()
	for _, t := range needed {
		path, err := cat.JoinPath(t)
		if err != nil {
			return nil, fmt.Errorf("resolve joins: %w", err)
		}
		for _, j := range path {
			if _, ok := joinByTable[j.Table]; ok {
				continue
			}
			joinByTable[j.Table] = j
			g.AddNode(j.Table)
		}
	}
	for table, j := range joinByTable {
		for _, dep := range j.DependsOn {
			if dep == base {
				continue
			}
			if err := g.AddDependency(table, dep); err != nil {
				return nil, fmt.Errorf("resolve joins: %w", err)
			}
		}
	}

	order, err := g.Sort()
	if err != nil {
		return nil, fmt.Errorf("resolve joins: %w", err)
	}

	r := &Resolved{Validated: v}
	for _, table := range order {
		r.Joins = append(r.Joins, joinByTable[table])
	}
	return r, nil
}
