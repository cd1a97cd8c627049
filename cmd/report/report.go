// Package report provides the command that summarizes an annotated transactions file.
package report

import (
	"fjacquet/ledgerflow/cmd/root"
	internalreport "fjacquet/ledgerflow/internal/report"

	"github.com/spf13/cobra"
)

// Format is the report output format.
var Format string

// Cmd represents the report command
var Cmd = &cobra.Command{
	Use:   "report",
	Short: "Write the period report from the annotated transactions CSV",
	Long: `Summarize income, expenses, per-category totals and the ten largest
expenses of the annotated transactions CSV as a Markdown (or JSON) document.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root.Log.Info("Report command called")
		return root.Finish(root.NewRunner().Report(root.SharedFlags.Input, root.SharedFlags.Output, Format))
	},
}

func init() {
	Cmd.Flags().StringVarP(&Format, "format", "f", internalreport.FormatMarkdown, "Report format (markdown, json)")
}
