// Package process provides the command that normalizes and annotates in one run.
package process

import (
	"fjacquet/ledgerflow/cmd/root"

	"github.com/spf13/cobra"
)

// Cmd represents the process command
var Cmd = &cobra.Command{
	Use:   "process",
	Short: "Normalize the configured exports and categorize the result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root.Log.Info("Process command called")
		return root.Finish(root.NewRunner().Process(cmd.Context(), root.SharedFlags.Output))
	},
}
