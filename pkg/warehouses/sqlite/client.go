// Package sqlite provides a SQLite warehouse client backed by the pure-Go
// modernc.org/sqlite driver.
//
// Import this package with a blank identifier to register the client:
//
//	import _ "github.com/leapstack-labs/metriq/pkg/warehouses/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/metriq/pkg/warehouse"

	_ "github.com/leapstack-labs/metriq/pkg/dialects/sqlite" // register dialect
	_ "modernc.org/sqlite"                                   // sqlite driver
)

// Client implements warehouse.Client for SQLite.
type Client struct {
	warehouse.BaseSQLClient
}

// New creates a SQLite client. A nil logger logs nowhere.
func New(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{BaseSQLClient: warehouse.BaseSQLClient{Logger: logger}}
}

// DialectName returns the SQL dialect compiled queries must target.
func (c *Client) DialectName() string { return "sqlite" }

// Connect opens the database file. Use ":memory:" for an in-memory database.
func (c *Client) Connect(ctx context.Context, cfg warehouse.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	c.DB = db
	c.Cfg = cfg
	return nil
}

var _ warehouse.Client = (*Client)(nil)

func init() {
	warehouse.Register("sqlite", func(logger *slog.Logger) warehouse.Client { return New(logger) })
}
