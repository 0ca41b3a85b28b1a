package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// RowStream iterates the rows of an executed query. Each row is keyed by the
// column alias the compiler assigned (the output field id).
//
// A RowStream is single-use and not safe for concurrent iteration. Callers
// must Close it and check Err after iteration.
type RowStream struct {
	ctx  context.Context
	rows *sql.Rows
	cols []string

	current map[string]any
	err     error
}

// NewRowStream wraps sql.Rows. The context aborts iteration when cancelled.
func NewRowStream(ctx context.Context, rows *sql.Rows) (*RowStream, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("read result columns: %w", err)
	}
	return &RowStream{ctx: ctx, rows: rows, cols: cols}, nil
}

// Columns returns the result column aliases in statement order.
func (s *RowStream) Columns() []string { return s.cols }

// Next advances to the next row. It returns false at the end of the result
// set, on scan failure, or when the stream's context is cancelled; Err
// distinguishes the cases.
func (s *RowStream) Next() bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if !s.rows.Next() {
		s.err = s.rows.Err()
		return false
	}

	values := make([]any, len(s.cols))
	ptrs := make([]any, len(s.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		s.err = fmt.Errorf("scan row: %w", err)
		return false
	}

	row := make(map[string]any, len(s.cols))
	for i, col := range s.cols {
		row[col] = normalizeValue(values[i])
	}
	s.current = row
	return true
}

// Row returns the current row. Valid only after Next returned true.
func (s *RowStream) Row() map[string]any { return s.current }

// Err returns the first error encountered during iteration, if any.
func (s *RowStream) Err() error { return s.err }

// Close releases the underlying result set.
func (s *RowStream) Close() error { return s.rows.Close() }

// normalizeValue maps driver-specific scan types to the engine's raw value
// vocabulary: []byte becomes string, everything else passes through.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
