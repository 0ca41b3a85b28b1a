package catalog

import (
	"strings"

	"github.com/leapstack-labs/metriq/pkg/types"
)

// CompileInline compiles a raw SQL fragment defined inline in a query (an
// additional metric or a SQL custom dimension) against the catalog. ${TABLE}
// resolves to ownerTable; ${table.field} resolves to that field's compiled
// expression. Returns the compiled fragment and the distinct tables it
// touches, starting with the owner.
func (c *Catalog) CompileInline(sql, ownerTable string) (string, []string, error) {
	if _, ok := c.tables[ownerTable]; !ok {
		return "", nil, ErrUnreachableTable
	}

	tables := []string{ownerTable}
	seen := map[string]bool{ownerTable: true}

	compiled, err := substituteRefs(sql, func(ref reference) (string, error) {
		if ref.field == "" {
			if !strings.EqualFold(ref.table, "TABLE") {
				return "", unknownRefError(ownerTable, ref)
			}
			return c.dialect.QuoteIdent(ownerTable), nil
		}
		f, err := c.Resolve(types.NewFieldRef(ref.table, ref.field).ID())
		if err != nil {
			return "", unknownRefError(ownerTable, ref)
		}
		for _, t := range f.TablesReferenced {
			if !seen[t] {
				seen[t] = true
				tables = append(tables, t)
			}
		}
		return f.CompiledSQL, nil
	})
	if err != nil {
		return "", nil, err
	}
	return compiled, tables, nil
}
