// Package duckdb provides a DuckDB warehouse client.
//
// Import this package with a blank identifier to register the client:
//
//	import _ "github.com/leapstack-labs/metriq/pkg/warehouses/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/metriq/pkg/warehouse"

	_ "github.com/leapstack-labs/metriq/pkg/dialects/duckdb" // register dialect
	_ "github.com/marcboeker/go-duckdb"                      // duckdb driver
)

// Client implements warehouse.Client for DuckDB.
type Client struct {
	warehouse.BaseSQLClient
}

// New creates a DuckDB client. A nil logger logs nowhere.
func New(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{BaseSQLClient: warehouse.BaseSQLClient{Logger: logger}}
}

// DialectName returns the SQL dialect compiled queries must target.
func (c *Client) DialectName() string { return "duckdb" }

// Connect opens the database. Use ":memory:" as the path for an in-memory
// database.
func (c *Client) Connect(ctx context.Context, cfg warehouse.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	c.DB = db
	c.Cfg = cfg
	return nil
}

var _ warehouse.Client = (*Client)(nil)

func init() {
	warehouse.Register("duckdb", func(logger *slog.Logger) warehouse.Client { return New(logger) })
}
