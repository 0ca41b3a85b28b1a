package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metriq/pkg/validate"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	var queryFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a metric query against its explore",
		Long: `Validate checks a metric query JSON file against the compiled catalog
and reports every violation found, not just the first.`,
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

			if _, err := validate.Validate(q, cat); err != nil {
				var verrs validate.Errors
				if errors.As(err, &verrs) {
					fmt.Fprintf(cmd.OutOrStdout(), "query is invalid (%d problems):\n", len(verrs))
					for _, e := range verrs {
						fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", e.Message)
					}
					return fmt.Errorf("validation failed")
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "query is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&queryFile, "query", "q", "-", "query JSON file (- for stdin)")
	return cmd
}
