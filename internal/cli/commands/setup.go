// Package commands implements the metriq CLI subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metriq/internal/config"
	"github.com/leapstack-labs/metriq/internal/loader"
	"github.com/leapstack-labs/metriq/pkg/catalog"
	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/metricquery"
)

// loadConfig resolves project configuration for a command invocation.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.Load(cfgFile, cmd.Root().PersistentFlags())
}

// newLogger builds the CLI logger. Verbose enables debug output.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openSnapshot loads and compiles the explores directory for the configured
// target's dialect.
func openSnapshot(cfg *config.Config, logger *slog.Logger) (*loader.Snapshot, error) {
	d, ok := dialect.Get(cfg.Target.Type)
	if !ok {
		return nil, fmt.Errorf("no SQL dialect registered for target type %q (available: %v)",
			cfg.Target.Type, dialect.List())
	}

	store := loader.NewStore(cfg.ExploresDir, d, logger)
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store.Snapshot(), nil
}

// resolveCatalog picks the catalog for a query's explore.
func resolveCatalog(snap *loader.Snapshot, q *metricquery.MetricQuery) (*catalog.Catalog, error) {
	if q.ExploreName == "" {
		return nil, fmt.Errorf("query sets no exploreName")
	}
	return snap.Catalog(q.ExploreName)
}

// readQuery reads a MetricQuery from a JSON file, or stdin when path is "-".
func readQuery(path string) (*metricquery.MetricQuery, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}

	var q metricquery.MetricQuery
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse query JSON: %w", err)
	}
	return &q, nil
}

// newFormatter builds the display formatter from project config. A query's
// own timezone takes precedence inside the result mapper.
func newFormatter(cfg *config.Config) (*displayfmt.Formatter, error) {
	return displayfmt.New(displayfmt.Config{
		Locale:    cfg.Locale,
		Timezone:  cfg.Timezone,
		NullLabel: cfg.NullLabel,
	})
}
