// Package results maps executed query rows into typed, display-formatted
// result values.
//
// The mapper consumes a warehouse RowStream and emits one Row per input row,
// containing a ResultValue for every output column of the compiled query,
// including table calculations the warehouse could not compute, which are
// evaluated row-locally here. Mapping is streaming: rows are transformed one
// at a time without buffering the result set.
package results

import (
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/calc"
	"github.com/leapstack-labs/metriq/pkg/compiler"
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/types"
	"github.com/leapstack-labs/metriq/pkg/warehouse"
)

// Row is one mapped result row, keyed by output field id. Every column of
// the compiled query is present, nulls included.
type Row map[string]types.ResultValue

// MappingError reports a row whose shape does not match the compiled query.
type MappingError struct {
	RowIndex int
	FieldID  string
	Reason   string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("row %d: field %q: %s", e.RowIndex, e.FieldID, e.Reason)
}

// Mapper streams mapped rows from an executed query.
type Mapper struct {
	query  *compiler.CompiledQuery
	stream *warehouse.RowStream
	fmt    *displayfmt.Formatter

	index   int
	current Row
	err     error
}

// NewMapper wraps a row stream. The formatter may be nil, in which case a
// default formatter ("en" locale) is used. The compiled query's timezone
// overrides the formatter's zone so temporal values render in the zone the
// query asked for.
func NewMapper(q *compiler.CompiledQuery, stream *warehouse.RowStream, f *displayfmt.Formatter) (*Mapper, error) {
	if f == nil {
		var err error
		f, err = displayfmt.New(displayfmt.Config{})
		if err != nil {
			return nil, err
		}
	}
	f = f.WithLocation(q.Location)
	return &Mapper{query: q, stream: stream, fmt: f}, nil
}

// Next advances to the next mapped row. It returns false at the end of the
// stream or on error; Err distinguishes.
func (m *Mapper) Next() bool {
	if m.err != nil {
		return false
	}
	if !m.stream.Next() {
		m.err = m.stream.Err()
		return false
	}

	row, err := m.mapRow(m.stream.Row())
	if err != nil {
		m.err = err
		return false
	}
	m.current = row
	m.index++
	return true
}

// Row returns the current mapped row. Valid only after Next returned true.
func (m *Mapper) Row() Row { return m.current }

// Err returns the first error encountered, if any.
func (m *Mapper) Err() error { return m.err }

// Close releases the underlying stream.
func (m *Mapper) Close() error { return m.stream.Close() }

func (m *Mapper) mapRow(raw map[string]any) (Row, error) {
	// Raw values for calculation evaluation, keyed by field id.
	scratch := make(map[string]any, len(m.query.Columns))
	out := make(Row, len(m.query.Columns))

	for _, col := range m.query.Columns {
		if col.Computed {
			continue
		}
		v, ok := raw[col.ID]
		if !ok {
			return nil, &MappingError{RowIndex: m.index, FieldID: col.ID,
				Reason: "missing from result set"}
		}
		scratch[col.ID] = v
	}

	// Row-local calculations, dependency order. Results feed later
	// calculations through scratch.
	for _, tc := range m.query.PostCalculations {
		v, err := calc.Eval(tc.Expr, scratch)
		if err != nil {
			return nil, &MappingError{RowIndex: m.index, FieldID: tc.Name, Reason: err.Error()}
		}
		scratch[tc.Name] = v
	}

	for _, col := range m.query.Columns {
		v := scratch[col.ID]
		out[col.ID] = types.ResultValue{
			Raw:       v,
			Formatted: m.fmt.Format(v, col.Type, col.Format),
		}
	}
	return out, nil
}

// Materialize drains the mapper into a slice, closing the stream.
func (m *Mapper) Materialize() ([]Row, error) {
	defer func() { _ = m.Close() }()
	var rows []Row
	for m.Next() {
		rows = append(rows, m.Row())
	}
	if err := m.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
