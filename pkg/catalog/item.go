package catalog

import (
	"github.com/google/uuid"

	"github.com/leapstack-labs/metriq/pkg/types"
)

// ItemType distinguishes the two catalog item variants.
type ItemType string

const (
	// ItemTypeTable is a table-level catalog entry.
	ItemTypeTable ItemType = "table"
	// ItemTypeField is a field-level catalog entry.
	ItemTypeField ItemType = "field"
)

// Item is the denormalized, search/display-oriented projection of catalog
// data consumed by UI and search collaborators. Items are derived from the
// catalog one way; nothing flows back.
type Item struct {
	SearchUUID  string   `json:"catalogSearchUuid"`
	Type        ItemType `json:"type"`
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`

	// Field-only attributes.
	TableName string          `json:"tableName,omitempty"`
	FieldKind types.FieldKind `json:"fieldType,omitempty"`
	BasicType string          `json:"basicType,omitempty"`

	// Table-only attributes.
	GroupLabel   string   `json:"tableGroupLabel,omitempty"`
	JoinedTables []string `json:"joinedTables,omitempty"`

	Tags               []string          `json:"tags,omitempty"`
	RequiredAttributes map[string]string `json:"requiredAttributes,omitempty"`

	// ChartUsage counts saved charts using the item; supplied by an
	// external analytics collaborator, zero when unknown.
	ChartUsage int `json:"chartUsage"`
}

// Items derives the catalog item projection: one table item per table and
// one field item per non-hidden field. chartUsage maps item names (table
// name or field id) to usage counters and may be nil.
func (c *Catalog) Items(chartUsage map[string]int) []Item {
	items := make([]Item, 0, len(c.tableOrder)+len(c.fieldOrder))

	for _, tname := range c.tableOrder {
		t := c.tables[tname]
		label := t.Label
		if label == "" {
			label = humanize(t.Name)
		}
		var joined []string
		for _, j := range c.joins {
			joined = append(joined, j.Table)
		}
		items = append(items, Item{
			SearchUUID:         uuid.NewString(),
			Type:               ItemTypeTable,
			Name:               t.Name,
			Label:              label,
			Description:        t.Description,
			GroupLabel:         t.GroupLabel,
			JoinedTables:       joined,
			Tags:               t.Tags,
			RequiredAttributes: t.RequiredAttributes,
			ChartUsage:         chartUsage[t.Name],
		})
	}

	for _, f := range c.AllFields() {
		if f.Hidden {
			continue
		}
		var tags []string
		if t, ok := c.tables[f.Ref.Table]; ok {
			tags = t.Tags
		}
		items = append(items, Item{
			SearchUUID:         uuid.NewString(),
			Type:               ItemTypeField,
			Name:               f.Ref.Name,
			Label:              f.Label,
			Description:        f.Description,
			TableName:          f.Ref.Table,
			FieldKind:          f.Kind,
			BasicType:          basicType(f),
			Tags:               tags,
			RequiredAttributes: f.RequiredAttributes,
			ChartUsage:         chartUsage[f.ID()],
		})
	}
	return items
}

// basicType maps a field to its coarse display type: metrics are numeric
// unless the aggregation preserves the input type (MIN/MAX).
func basicType(f *Field) string {
	t := f.Type
	if f.Kind == types.KindMetric {
		t = f.Aggregation.ResultType(f.Type)
	}
	return string(t)
}
