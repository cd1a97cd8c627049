// Package annotate provides the command that labels transactions with categories.
package annotate

import (
	"fjacquet/ledgerflow/cmd/root"

	"github.com/spf13/cobra"
)

// Cmd represents the annotate command
var Cmd = &cobra.Command{
	Use:   "annotate",
	Short: "Categorize every transaction of the transactions CSV",
	Long: `Ask the configured model for the category of each transaction, one row at a
time, and write the category column back. Rows the model cannot label are set
to "uncategorized". Decisions are written to a YAML audit file next to the CSV.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root.Log.Info("Annotate command called")
		return root.Finish(root.NewRunner().Annotate(cmd.Context(), root.SharedFlags.Input, root.SharedFlags.Output))
	},
}
