// Package normalize provides the command that builds the canonical transactions file.
package normalize

import (
	"fjacquet/ledgerflow/cmd/root"

	"github.com/spf13/cobra"
)

// Cmd represents the normalize command
var Cmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize the configured exports into the canonical transactions CSV",
	Long: `Read every configured source export, keep completed income and expense rows,
merge them by timestamp and write the canonical transactions CSV.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root.Log.Info("Normalize command called")
		return root.Finish(root.NewRunner().Normalize(cmd.Context(), root.SharedFlags.Output))
	},
}
