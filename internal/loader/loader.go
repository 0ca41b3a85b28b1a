// Package loader reads YAML explore definitions and maintains the compiled
// catalog snapshots the runner queries against.
//
// Explore changes never mutate a catalog in place: the whole snapshot is
// rebuilt and swapped atomically, so concurrent readers always see either
// the old or the new state.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/metriq/pkg/catalog"
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/types"
)

// YAML file shapes. These mirror catalog definition types but stay separate
// so the on-disk format can evolve without touching the engine types.

type exploreFile struct {
	Name        string      `yaml:"name"`
	Label       string      `yaml:"label"`
	Description string      `yaml:"description"`
	BaseTable   string      `yaml:"base_table"`
	Tables      []tableFile `yaml:"tables"`
	Joins       []joinFile  `yaml:"joins"`
}

type tableFile struct {
	Name               string            `yaml:"name"`
	Label              string            `yaml:"label"`
	GroupLabel         string            `yaml:"group_label"`
	Description        string            `yaml:"description"`
	SQLTable           string            `yaml:"sql_table"`
	RequiredAttributes map[string]string `yaml:"required_attributes"`
	Tags               []string          `yaml:"tags"`
	Dimensions         []fieldFile       `yaml:"dimensions"`
	Metrics            []fieldFile       `yaml:"metrics"`
}

type fieldFile struct {
	Name               string              `yaml:"name"`
	Label              string              `yaml:"label"`
	Description        string              `yaml:"description"`
	Type               string              `yaml:"type"`
	SQL                string              `yaml:"sql"`
	Hidden             bool                `yaml:"hidden"`
	Aggregation        string              `yaml:"aggregation"`
	Percentile         float64             `yaml:"percentile"`
	DrillFields        []string            `yaml:"drill_fields"`
	RequiredAttributes map[string]string   `yaml:"required_attributes"`
	Format             *displayfmt.Options `yaml:"format"`
}

type joinFile struct {
	Table string `yaml:"table"`
	Type  string `yaml:"type"`
	SQLOn string `yaml:"sql_on"`
}

// LoadFile parses one explore definition.
func LoadFile(path string) (*catalog.Explore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read explore file: %w", err)
	}

	var ef exploreFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("parse explore file %s: %w", path, err)
	}
	if ef.Name == "" {
		base := filepath.Base(path)
		ef.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return toExplore(&ef)
}

// LoadDir parses every explore definition (*.yaml, *.yml) in a directory,
// sorted by file name for deterministic ordering.
func LoadDir(dir string) ([]*catalog.Explore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read explores directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	explores := make([]*catalog.Explore, 0, len(paths))
	seen := make(map[string]string)
	for _, path := range paths {
		ex, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[ex.Name]; dup {
			return nil, fmt.Errorf("explore %q defined in both %s and %s", ex.Name, prev, path)
		}
		seen[ex.Name] = path
		explores = append(explores, ex)
	}
	return explores, nil
}

func toExplore(ef *exploreFile) (*catalog.Explore, error) {
	ex := &catalog.Explore{
		Name:        ef.Name,
		Label:       ef.Label,
		Description: ef.Description,
		BaseTable:   ef.BaseTable,
	}
	if ex.BaseTable == "" && len(ef.Tables) > 0 {
		ex.BaseTable = ef.Tables[0].Name
	}

	for _, tf := range ef.Tables {
		t := &catalog.Table{
			Name:               tf.Name,
			Label:              tf.Label,
			GroupLabel:         tf.GroupLabel,
			Description:        tf.Description,
			SQLTable:           tf.SQLTable,
			RequiredAttributes: tf.RequiredAttributes,
			Tags:               tf.Tags,
		}
		for _, ff := range tf.Dimensions {
			t.Dimensions = append(t.Dimensions, toFieldSpec(ff))
		}
		for _, ff := range tf.Metrics {
			t.Metrics = append(t.Metrics, toFieldSpec(ff))
		}
		ex.Tables = append(ex.Tables, t)
	}

	for _, jf := range ef.Joins {
		jt, err := joinType(jf.Type)
		if err != nil {
			return nil, fmt.Errorf("explore %s: join %s: %w", ef.Name, jf.Table, err)
		}
		ex.Joins = append(ex.Joins, catalog.Join{
			Table: jf.Table,
			Type:  jt,
			SQLOn: jf.SQLOn,
		})
	}
	return ex, nil
}

func toFieldSpec(ff fieldFile) catalog.FieldSpec {
	return catalog.FieldSpec{
		Name:               ff.Name,
		Label:              ff.Label,
		Description:        ff.Description,
		Type:               types.ValueType(ff.Type),
		SQL:                ff.SQL,
		Hidden:             ff.Hidden,
		Aggregation:        types.Aggregation(ff.Aggregation),
		Percentile:         ff.Percentile,
		DrillFields:        ff.DrillFields,
		RequiredAttributes: ff.RequiredAttributes,
		Format:             ff.Format,
	}
}

func joinType(s string) (catalog.JoinType, error) {
	switch strings.ToLower(s) {
	case "", "left":
		return catalog.JoinLeft, nil
	case "inner":
		return catalog.JoinInner, nil
	case "right":
		return catalog.JoinRight, nil
	case "full":
		return catalog.JoinFull, nil
	default:
		return "", fmt.Errorf("unknown join type %q", s)
	}
}
