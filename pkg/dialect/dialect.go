// Package dialect defines the SQL emission contract for target warehouses.
//
// A Dialect knows how to quote identifiers, escape string literals, format
// parameter placeholders, and render aggregations and timezone conversions.
// Concrete dialects are registered from pkg/dialects/*/ packages via init().
package dialect

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/metriq/pkg/types"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, SQLite, MySQL).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. (PostgreSQL).
	PlaceholderDollar
)

// AggregateFunc renders an aggregation over a compiled SQL expression.
// The percentile argument is only meaningful for percentile aggregations
// (0 < p < 1).
type AggregateFunc func(expr string, percentile float64) string

// TimezoneFunc converts a timestamp expression into the named zone.
type TimezoneFunc func(expr, tz string) string

// Dialect is a SQL dialect configuration. Build one with NewDialect; all
// fields are fixed after Build, so a Dialect is safe for concurrent use.
type Dialect struct {
	Name string

	quote       string
	quoteEnd    string
	escape      string
	placeholder PlaceholderStyle

	aggregates    map[types.Aggregation]AggregateFunc
	timezone      TimezoneFunc
	calcFunctions map[string]struct{}
	trueLiteral   string
	falseLiteral  string
	likeEscape    string
}

// QuoteIdent quotes an identifier (table name or column alias).
func (d *Dialect) QuoteIdent(name string) string {
	escaped := name
	if d.escape != "" {
		escaped = strings.ReplaceAll(name, d.quoteEnd, d.escape)
	}
	return d.quote + escaped + d.quoteEnd
}

// EscapeString renders a string value as a SQL literal.
func (d *Dialect) EscapeString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// FormatPlaceholder returns the placeholder for the n-th parameter (1-based).
func (d *Dialect) FormatPlaceholder(n int) string {
	if d.placeholder == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// BoolLiteral renders a boolean literal.
func (d *Dialect) BoolLiteral(v bool) string {
	if v {
		return d.trueLiteral
	}
	return d.falseLiteral
}

// RenderAggregate renders an aggregation over expr, or an error when the
// dialect cannot express it. Capability gaps surface here, not at runtime.
func (d *Dialect) RenderAggregate(agg types.Aggregation, expr string, percentile float64) (string, error) {
	fn, ok := d.aggregates[agg]
	if !ok {
		return "", fmt.Errorf("dialect %s cannot express aggregation %q", d.Name, agg)
	}
	return fn(expr, percentile), nil
}

// SupportsAggregate reports whether the dialect can render the aggregation.
func (d *Dialect) SupportsAggregate(agg types.Aggregation) bool {
	_, ok := d.aggregates[agg]
	return ok
}

// ConvertTimezone wraps a timestamp expression in the dialect's timezone
// conversion. Dialects without timezone support return the expression as-is.
func (d *Dialect) ConvertTimezone(expr, tz string) string {
	if d.timezone == nil || tz == "" {
		return expr
	}
	return d.timezone(expr, tz)
}

// SupportsCalcFunction reports whether the named table-calculation function
// can be pushed into this dialect's SQL. Names are matched case-insensitively.
func (d *Dialect) SupportsCalcFunction(name string) bool {
	_, ok := d.calcFunctions[strings.ToLower(name)]
	return ok
}

// LikeEscapeClause returns the ESCAPE clause appended to LIKE predicates.
// Pattern metacharacters in user values are escaped with the same character,
// so the clause must be emitted wherever those patterns are compared.
func (d *Dialect) LikeEscapeClause() string {
	if d.likeEscape == "" {
		return ""
	}
	return " ESCAPE '" + d.likeEscape + "'"
}

// LimitClause renders the row limit clause.
func (d *Dialect) LimitClause(limit int) string {
	return fmt.Sprintf("LIMIT %d", limit)
}

// Builder constructs a Dialect.
type Builder struct {
	d *Dialect
}

// NewDialect starts building a dialect with the given name.
func NewDialect(name string) *Builder {
	return &Builder{d: &Dialect{
		Name:          name,
		quote:         `"`,
		quoteEnd:      `"`,
		escape:        `""`,
		aggregates:    make(map[types.Aggregation]AggregateFunc),
		calcFunctions: make(map[string]struct{}),
		trueLiteral:   "TRUE",
		falseLiteral:  "FALSE",
		likeEscape:    `\`,
	}}
}

// Identifiers sets the identifier quoting characters.
func (b *Builder) Identifiers(quote, quoteEnd, escape string) *Builder {
	b.d.quote = quote
	b.d.quoteEnd = quoteEnd
	b.d.escape = escape
	return b
}

// Placeholder sets the parameter placeholder style.
func (b *Builder) Placeholder(style PlaceholderStyle) *Builder {
	b.d.placeholder = style
	return b
}

// Aggregate registers a renderer for an aggregation kind.
func (b *Builder) Aggregate(agg types.Aggregation, fn AggregateFunc) *Builder {
	b.d.aggregates[agg] = fn
	return b
}

// Timezone sets the timestamp timezone conversion renderer.
func (b *Builder) Timezone(fn TimezoneFunc) *Builder {
	b.d.timezone = fn
	return b
}

// CalcFunctions declares table-calculation functions expressible in SQL.
func (b *Builder) CalcFunctions(names ...string) *Builder {
	for _, n := range names {
		b.d.calcFunctions[strings.ToLower(n)] = struct{}{}
	}
	return b
}

// LikeEscape overrides the LIKE escape character. Empty disables the ESCAPE
// clause for dialects that cannot express it.
func (b *Builder) LikeEscape(ch string) *Builder {
	b.d.likeEscape = ch
	return b
}

// BoolLiterals overrides the TRUE/FALSE literal spellings.
func (b *Builder) BoolLiterals(trueLit, falseLit string) *Builder {
	b.d.trueLiteral = trueLit
	b.d.falseLiteral = falseLit
	return b
}

// Build finalizes the dialect.
func (b *Builder) Build() *Dialect {
	return b.d
}
