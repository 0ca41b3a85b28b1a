package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewExploresCmd creates the explores command.
func NewExploresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explores [explore]",
		Short: "List explores, or the fields of one explore",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if len(args) == 0 {
				for _, name := range snap.Explores() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			cat, err := snap.Catalog(args[0])
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Field ID", "Kind", "Type", "Label", "Aggregation"})
			for _, f := range cat.AllFields() {
				if f.Hidden {
					continue
				}
				t.AppendRow(table.Row{f.ID(), f.Kind, f.Type, f.Label, f.Aggregation})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}
