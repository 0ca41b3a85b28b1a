// Package warehouse defines the execution contract between the query engine
// and target databases.
//
// A Client executes compiled SQL and returns a RowStream of rows keyed by
// output alias. Concrete clients live in pkg/warehouses/ subdirectories and
// register themselves via init().
package warehouse

import (
	"context"
	"fmt"
)

// Client is the interface every warehouse client implements.
type Client interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Execute runs a parameterized query and streams its rows. The stream
	// honors ctx: cancelling it aborts iteration.
	Execute(ctx context.Context, sql string, params []any) (*RowStream, error)

	// DialectName names the SQL dialect compiled queries must target.
	DialectName() string
}

// Config holds connection settings for a warehouse target.
type Config struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
}

// ExecError wraps a failed execution with the statement that caused it.
type ExecError struct {
	SQL string
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
