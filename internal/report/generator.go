package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"fjacquet/ledgerflow/internal/fileutils"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/parsererror"
)

// Output formats
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// ReportGenerator renders a Summary and writes it to disk.
type ReportGenerator struct {
	logger logging.Logger
}

// NewReportGenerator creates a new instance of ReportGenerator.
func NewReportGenerator(logger logging.Logger) *ReportGenerator {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &ReportGenerator{logger: logger.WithField("component", "ReportGenerator")}
}

// GenerateReport renders the summary in the given format (markdown or json).
func (g *ReportGenerator) GenerateReport(s Summary, opts Options, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatMarkdown, "md":
		return []byte(RenderMarkdown(s, opts)), nil
	case FormatJSON:
		return g.generateJSONReport(s, opts)
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

type jsonReport struct {
	Period         string `json:"period"`
	Tag            string `json:"tag,omitempty"`
	CurrencySymbol string `json:"currency_symbol"`
	Summary
}

func (g *ReportGenerator) generateJSONReport(s Summary, opts Options) ([]byte, error) {
	symbol := opts.CurrencySymbol
	if symbol == "" {
		symbol = DefaultCurrencySymbol
	}
	out, err := json.MarshalIndent(jsonReport{Period: opts.Period, Tag: opts.Tag, CurrencySymbol: symbol, Summary: s}, "", "  ")
	if err != nil {
		g.logger.WithError(err).Error("Failed to marshal JSON report")
		return nil, fmt.Errorf("failed to marshal JSON report: %w", err)
	}
	return append(out, '\n'), nil
}

// WriteReport summarizes transactions and writes the rendered report to path.
func (g *ReportGenerator) WriteReport(path string, transactions []models.Transaction, opts Options, format string) (Summary, error) {
	summary := Summarize(transactions)
	content, err := g.GenerateReport(summary, opts, format)
	if err != nil {
		return summary, err
	}
	if err := fileutils.WriteFileAtomic(path, content, models.PermissionOutputFile); err != nil {
		return summary, &parsererror.WriteError{Path: path, Err: err}
	}

	g.logger.Info("Wrote report",
		logging.Field{Key: logging.FieldOutputFile, Value: path},
		logging.Field{Key: logging.FieldCount, Value: len(transactions)},
		logging.Field{Key: "total_income", Value: summary.TotalIncome.StringFixed(models.AmountPlaces)},
		logging.Field{Key: "total_expense", Value: summary.TotalExpense.StringFixed(models.AmountPlaces)})
	return summary, nil
}
