package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metriq/internal/runner"
	"github.com/leapstack-labs/metriq/pkg/warehouse"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var queryFile string
	var raw bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a metric query against the configured warehouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
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

			client, err := warehouse.New(cfg.Target, logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := client.Connect(ctx, cfg.Target); err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			formatter, err := newFormatter(cfg)
			if err != nil {
				return err
			}

			r := runner.New(client, runner.Options{
				Logger:       logger,
				Formatter:    formatter,
				DefaultLimit: cfg.Limit,
			})
			resp, err := r.Run(ctx, q, cat)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("output")
			return renderResponse(cmd.OutOrStdout(), resp, format, raw)
		},
	}

	cmd.Flags().StringVarP(&queryFile, "query", "q", "-", "query JSON file (- for stdin)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw values instead of formatted ones")
	return cmd
}
