// Package cli provides the command-line interface for metriq.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metriq/internal/cli/commands"

	// Register warehouse clients (and their dialects) for all targets the
	// CLI supports out of the box.
	_ "github.com/leapstack-labs/metriq/pkg/warehouses/duckdb"
	_ "github.com/leapstack-labs/metriq/pkg/warehouses/postgres"
	_ "github.com/leapstack-labs/metriq/pkg/warehouses/sqlite"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "metriq",
		Short: "metriq - Metric query compilation engine",
		Long: `metriq compiles declarative metric queries against explore definitions
into warehouse SQL, executes them, and maps the results into typed,
display-formatted values.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./metriq.yaml)")
	rootCmd.PersistentFlags().String("explores-dir", "", "path to explore definitions")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json, csv")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		commands.NewValidateCmd(),
		commands.NewCompileCmd(),
		commands.NewRunCmd(),
		commands.NewExploresCmd(),
		commands.NewVersionCmd(Version, GitCommit),
	)
	return rootCmd
}

// Execute runs the CLI, cancelling on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		cobra.CheckErr(err)
	}
}
