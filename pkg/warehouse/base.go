package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// BaseSQLClient provides common database/sql functionality. Embed it in
// concrete clients to get standard Close and Execute implementations.
type BaseSQLClient struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLClient) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing warehouse connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Execute runs a parameterized query and wraps the result in a RowStream.
func (b *BaseSQLClient) Execute(ctx context.Context, sqlStr string, params []any) (*RowStream, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("warehouse connection not established")
	}
	if b.Logger != nil {
		b.Logger.Debug("executing query", slog.Int("params", len(params)))
	}
	//nolint:rowserrcheck // rows.Err() is surfaced through RowStream.Err
	rows, err := b.DB.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, &ExecError{SQL: sqlStr, Err: err}
	}
	return NewRowStream(ctx, rows)
}

// IsConnected reports whether the connection is established.
func (b *BaseSQLClient) IsConnected() bool { return b.DB != nil }
