package metricquery

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/types"
)

// BoolOperator combines the children of a filter group.
type BoolOperator string

const (
	// BoolAnd requires every child to match.
	BoolAnd BoolOperator = "and"
	// BoolOr requires at least one child to match.
	BoolOr BoolOperator = "or"
)

// FilterNode is one node of the filter tree: a FilterGroup or a
// FilterCondition.
type FilterNode interface {
	filterNode()
}

// FilterGroup nests filter nodes under an AND/OR operator.
type FilterGroup struct {
	Op       BoolOperator
	Children []FilterNode
}

func (*FilterGroup) filterNode() {}

// FilterCondition compares one field against values.
type FilterCondition struct {
	FieldID  string         `json:"fieldId"`
	Operator FilterOperator `json:"operator"`
	Values   []any          `json:"values,omitempty"`
}

func (*FilterCondition) filterNode() {}

// And builds an AND group.
func And(children ...FilterNode) *FilterGroup {
	return &FilterGroup{Op: BoolAnd, Children: children}
}

// Or builds an OR group.
func Or(children ...FilterNode) *FilterGroup {
	return &FilterGroup{Op: BoolOr, Children: children}
}

// Walk visits every condition in the tree.
func (g *FilterGroup) Walk(visit func(*FilterCondition)) {
	if g == nil {
		return
	}
	for _, child := range g.Children {
		switch n := child.(type) {
		case *FilterGroup:
			n.Walk(visit)
		case *FilterCondition:
			visit(n)
		}
	}
}

// MarshalJSON renders the group as {"and": [...]} or {"or": [...]}.
func (g *FilterGroup) MarshalJSON() ([]byte, error) {
	children := make([]json.RawMessage, 0, len(g.Children))
	for _, child := range g.Children {
		b, err := json.Marshal(child)
		if err != nil {
			return nil, err
		}
		children = append(children, b)
	}
	return json.Marshal(map[string][]json.RawMessage{string(g.Op): children})
}

// UnmarshalJSON parses {"and": [...]} / {"or": [...]} with each child being
// either a nested group or a condition object.
func (g *FilterGroup) UnmarshalJSON(data []byte) error {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var op BoolOperator
	var children []json.RawMessage
	switch {
	case raw[string(BoolAnd)] != nil:
		op, children = BoolAnd, raw[string(BoolAnd)]
	case raw[string(BoolOr)] != nil:
		op, children = BoolOr, raw[string(BoolOr)]
	default:
		return fmt.Errorf("filter group must have an %q or %q key", BoolAnd, BoolOr)
	}

	g.Op = op
	g.Children = g.Children[:0]
	for _, childRaw := range children {
		node, err := unmarshalFilterNode(childRaw)
		if err != nil {
			return err
		}
		g.Children = append(g.Children, node)
	}
	return nil
}

func unmarshalFilterNode(data []byte) (FilterNode, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe[string(BoolAnd)] != nil || probe[string(BoolOr)] != nil {
		var group FilterGroup
		if err := json.Unmarshal(data, &group); err != nil {
			return nil, err
		}
		return &group, nil
	}
	var cond FilterCondition
	if err := json.Unmarshal(data, &cond); err != nil {
		return nil, err
	}
	return &cond, nil
}

// FilterOperator compares a field against filter values.
type FilterOperator string

// Filter operators. Which operators apply depends on the field's semantic
// type; the validator enforces the pairing.
const (
	OpEquals         FilterOperator = "equals"
	OpNotEquals      FilterOperator = "notEquals"
	OpContains       FilterOperator = "contains"
	OpNotContains    FilterOperator = "doesNotContain"
	OpStartsWith     FilterOperator = "startsWith"
	OpLessThan       FilterOperator = "lessThan"
	OpLessOrEqual    FilterOperator = "lessThanOrEqual"
	OpGreaterThan    FilterOperator = "greaterThan"
	OpGreaterOrEqual FilterOperator = "greaterThanOrEqual"
	OpInBetween      FilterOperator = "inBetween"
	OpIsNull         FilterOperator = "isNull"
	OpNotNull        FilterOperator = "notNull"
)

// Valid reports whether op is a known operator.
func (op FilterOperator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith,
		OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual,
		OpInBetween, OpIsNull, OpNotNull:
		return true
	}
	return false
}

// AppliesTo reports whether the operator is meaningful for a field of the
// given semantic type. String matching operators do not apply to numbers;
// ordering operators do not apply to booleans.
func (op FilterOperator) AppliesTo(t types.ValueType) bool {
	switch op {
	case OpEquals, OpNotEquals, OpIsNull, OpNotNull:
		return true
	case OpContains, OpNotContains, OpStartsWith:
		return t == types.TypeString
	case OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual, OpInBetween:
		return t == types.TypeNumber || t.IsTemporal()
	}
	return false
}

// ValueBounds returns the minimum and maximum number of filter values the
// operator accepts. max < 0 means unbounded.
func (op FilterOperator) ValueBounds() (min, max int) {
	switch op {
	case OpIsNull, OpNotNull:
		return 0, 0
	case OpInBetween:
		return 2, 2
	case OpEquals, OpNotEquals:
		return 1, -1
	default:
		return 1, 1
	}
}
