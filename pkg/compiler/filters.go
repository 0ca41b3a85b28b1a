package compiler

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/metricquery"
	"github.com/leapstack-labs/metriq/pkg/types"
)

// filterTarget is what a filter condition compiles against: the SQL
// expression to compare (aggregated for metrics) and its field kind.
type filterTarget struct {
	sql  string
	kind types.FieldKind
}

// filterRenderer compiles filter trees to parameterized SQL. Parameters are
// appended in render order so placeholder numbering matches the final
// statement.
type filterRenderer struct {
	d       *dialect.Dialect
	targets map[string]filterTarget
	params  []any
}

func (r *filterRenderer) placeholder(v any) string {
	r.params = append(r.params, v)
	return r.d.FormatPlaceholder(len(r.params))
}

// renderNode compiles one filter node to a SQL predicate.
func (r *filterRenderer) renderNode(node metricquery.FilterNode) (string, error) {
	switch n := node.(type) {
	case *metricquery.FilterGroup:
		return r.renderGroup(n)
	case *metricquery.FilterCondition:
		return r.renderCondition(n)
	default:
		return "", fmt.Errorf("unknown filter node %T", node)
	}
}

func (r *filterRenderer) renderGroup(g *metricquery.FilterGroup) (string, error) {
	if len(g.Children) == 0 {
		return "", nil
	}
	joiner := " AND "
	if g.Op == metricquery.BoolOr {
		joiner = " OR "
	}
	parts := make([]string, 0, len(g.Children))
	for _, child := range g.Children {
		s, err := r.renderNode(child)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, joiner) + ")", nil
}

func (r *filterRenderer) renderCondition(c *metricquery.FilterCondition) (string, error) {
	target, ok := r.targets[c.FieldID]
	if !ok {
		return "", fmt.Errorf("filter references unresolved field %q", c.FieldID)
	}
	expr := target.sql

	switch c.Operator {
	case metricquery.OpIsNull:
		return expr + " IS NULL", nil
	case metricquery.OpNotNull:
		return expr + " IS NOT NULL", nil

	case metricquery.OpEquals:
		if len(c.Values) == 1 {
			return fmt.Sprintf("(%s = %s)", expr, r.placeholder(c.Values[0])), nil
		}
		return fmt.Sprintf("(%s IN (%s))", expr, r.placeholderList(c.Values)), nil

	case metricquery.OpNotEquals:
		if len(c.Values) == 1 {
			return fmt.Sprintf("(%s IS NULL OR %s != %s)", expr, expr, r.placeholder(c.Values[0])), nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", expr, expr, r.placeholderList(c.Values)), nil

	case metricquery.OpContains:
		return fmt.Sprintf("(%s LIKE %s%s)", expr, r.placeholder(likePattern(c.Values[0], true, true)), r.d.LikeEscapeClause()), nil
	case metricquery.OpNotContains:
		return fmt.Sprintf("(%s IS NULL OR %s NOT LIKE %s%s)", expr, expr, r.placeholder(likePattern(c.Values[0], true, true)), r.d.LikeEscapeClause()), nil
	case metricquery.OpStartsWith:
		return fmt.Sprintf("(%s LIKE %s%s)", expr, r.placeholder(likePattern(c.Values[0], false, true)), r.d.LikeEscapeClause()), nil

	case metricquery.OpLessThan:
		return fmt.Sprintf("(%s < %s)", expr, r.placeholder(c.Values[0])), nil
	case metricquery.OpLessOrEqual:
		return fmt.Sprintf("(%s <= %s)", expr, r.placeholder(c.Values[0])), nil
	case metricquery.OpGreaterThan:
		return fmt.Sprintf("(%s > %s)", expr, r.placeholder(c.Values[0])), nil
	case metricquery.OpGreaterOrEqual:
		return fmt.Sprintf("(%s >= %s)", expr, r.placeholder(c.Values[0])), nil

	case metricquery.OpInBetween:
		lo := r.placeholder(c.Values[0])
		hi := r.placeholder(c.Values[1])
		return fmt.Sprintf("(%s BETWEEN %s AND %s)", expr, lo, hi), nil
	}
	return "", fmt.Errorf("unknown filter operator %q", c.Operator)
}

func (r *filterRenderer) placeholderList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = r.placeholder(v)
	}
	return strings.Join(parts, ", ")
}

// likePattern builds the LIKE parameter, escaping pattern metacharacters in
// the user value.
func likePattern(v any, prefixWild, suffixWild bool) string {
	s := fmt.Sprintf("%v", v)
	s = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
	if prefixWild {
		s = "%" + s
	}
	if suffixWild {
		s = s + "%"
	}
	return s
}

// referencesMetric reports whether any condition in the subtree targets a
// metric.
func referencesMetric(node metricquery.FilterNode, targets map[string]filterTarget) bool {
	switch n := node.(type) {
	case *metricquery.FilterGroup:
		for _, child := range n.Children {
			if referencesMetric(child, targets) {
				return true
			}
		}
		return false
	case *metricquery.FilterCondition:
		return targets[n.FieldID].kind == types.KindMetric
	}
	return false
}

// referencesDimension reports whether any condition in the subtree targets a
// dimension.
func referencesDimension(node metricquery.FilterNode, targets map[string]filterTarget) bool {
	switch n := node.(type) {
	case *metricquery.FilterGroup:
		for _, child := range n.Children {
			if referencesDimension(child, targets) {
				return true
			}
		}
		return false
	case *metricquery.FilterCondition:
		return targets[n.FieldID].kind == types.KindDimension
	}
	return false
}

// splitFilters partitions the filter tree into WHERE material (dimension
// conditions) and HAVING material (metric conditions). The split happens at
// the children of a top-level AND; a subtree that mixes both kinds cannot be
// split soundly and is rejected.
func splitFilters(root *metricquery.FilterGroup, targets map[string]filterTarget) (where, having []metricquery.FilterNode, err error) {
	if root == nil {
		return nil, nil, nil
	}

	children := []metricquery.FilterNode{metricquery.FilterNode(root)}
	if root.Op == metricquery.BoolAnd {
		children = root.Children
	}

	for _, child := range children {
		hasMetric := referencesMetric(child, targets)
		if hasMetric && referencesDimension(child, targets) {
			return nil, nil, fmt.Errorf("cannot mix dimension and metric filters in one group")
		}
		if hasMetric {
			having = append(having, child)
		} else {
			where = append(where, child)
		}
	}
	return where, having, nil
}
