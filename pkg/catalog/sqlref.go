package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// refPattern matches ${TABLE} and ${table.field} references in raw SQL
// expressions and join conditions.
var refPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9_]+)(?:\.([a-zA-Z0-9_]+))?\}`)

// reference is one ${...} occurrence in a raw SQL fragment.
type reference struct {
	raw   string
	table string
	field string // empty for ${TABLE}
}

// parseRefs extracts all references from a raw SQL fragment.
func parseRefs(sql string) []reference {
	matches := refPattern.FindAllStringSubmatch(sql, -1)
	refs := make([]reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, reference{raw: m[0], table: m[1], field: m[2]})
	}
	return refs
}

// substituteRefs rewrites a raw SQL fragment, replacing each reference via
// the resolve callback. The callback receives the reference and returns the
// compiled SQL to splice in.
func substituteRefs(sql string, resolve func(reference) (string, error)) (string, error) {
	var firstErr error
	out := refPattern.ReplaceAllStringFunc(sql, func(raw string) string {
		m := refPattern.FindStringSubmatch(raw)
		compiled, err := resolve(reference{raw: m[0], table: m[1], field: m[2]})
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return compiled
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// referencedTables returns the distinct table names a fragment depends on,
// with ${TABLE} resolved to owner. Order follows first appearance.
func referencedTables(sql, owner string) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, ref := range parseRefs(sql) {
		t := ref.table
		if strings.EqualFold(t, "TABLE") {
			t = owner
		}
		if !seen[t] {
			seen[t] = true
			tables = append(tables, t)
		}
	}
	return tables
}

func unknownRefError(owner string, ref reference) error {
	if ref.field == "" {
		return fmt.Errorf("table %s: unknown reference %s", owner, ref.raw)
	}
	return fmt.Errorf("table %s: reference %s does not resolve to a field", owner, ref.raw)
}
