package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metriq/internal/runner"
)

// NewCompileCmd creates the compile command.
func NewCompileCmd() *cobra.Command {
	var queryFile string
	var showParams bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a metric query to warehouse SQL",
		Long: `Compile validates a metric query, resolves its joins and prints the SQL
that would run against the configured target, without executing it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			logger := newLogger(verbose)

			snap, err := openSnapshot(cfg, logger)
			if err != nil {
				return err
			}
			q, err := readQuery(queryFile)
			if err != nil {
				return err
			}
			cat, err := resolveCatalog(snap, q)
			if err != nil {
				return err
			}

			r := runner.New(nil, runner.Options{Logger: logger, DefaultLimit: cfg.Limit})
			compiled, err := r.Compile(q, cat)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), compiled.SQL)
			if showParams && len(compiled.Params) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "-- params: %v\n", compiled.Params)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&queryFile, "query", "q", "-", "query JSON file (- for stdin)")
	cmd.Flags().BoolVar(&showParams, "params", true, "print bound parameters")
	return cmd
}
