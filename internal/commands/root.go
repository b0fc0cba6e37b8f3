package commands

import (
	"github.com/spf13/cobra"

	"github.com/stacksjs/qb"
	"github.com/stacksjs/qb/internal/output"
)

// RootCmd creates and returns the root command for the qb CLI.
func RootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "qb",
		Short: "Model-driven SQL migration toolkit",
		Long: `qb derives a physical schema from model definitions and synthesizes
incremental migrations by diffing successive model snapshots.

Declare models in YAML, then:
  qb generate     # diff against the last snapshot, write migration files
  qb migrate up   # apply pending migrations`,
		Version: qb.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			output.SetVerbose(verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")

	return cmd
}
