// Package postgres provides a PostgreSQL warehouse client.
//
// Import this package with a blank identifier to register the client:
//
//	import _ "github.com/leapstack-labs/metriq/pkg/warehouses/postgres"
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/metriq/pkg/warehouse"

	_ "github.com/jackc/pgx/v5/stdlib"                         // pgx driver
	_ "github.com/leapstack-labs/metriq/pkg/dialects/postgres" // register dialect
)

// Client implements warehouse.Client for PostgreSQL.
type Client struct {
	warehouse.BaseSQLClient
}

// New creates a PostgreSQL client. A nil logger logs nowhere.
func New(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{BaseSQLClient: warehouse.BaseSQLClient{Logger: logger}}
}

// DialectName returns the SQL dialect compiled queries must target.
func (c *Client) DialectName() string { return "postgres" }

// Connect establishes a connection to PostgreSQL.
func (c *Client) Connect(ctx context.Context, cfg warehouse.Config) error {
	dsn := buildDSN(cfg)

	c.Logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	c.DB = db
	c.Cfg = cfg
	return nil
}

// buildDSN constructs a key=value connection string.
func buildDSN(cfg warehouse.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += " user=" + cfg.Username
	}
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	if cfg.Schema != "" {
		dsn += " search_path=" + cfg.Schema
	}
	return dsn
}

var _ warehouse.Client = (*Client)(nil)

func init() {
	warehouse.Register("postgres", func(logger *slog.Logger) warehouse.Client { return New(logger) })
}
