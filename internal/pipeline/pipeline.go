// Package pipeline runs the normalize, annotate and report stages. Each stage
// reads the previous stage's file from disk and writes its own.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fjacquet/ledgerflow/internal/annotator"
	"fjacquet/ledgerflow/internal/config"
	"fjacquet/ledgerflow/internal/container"
	"fjacquet/ledgerflow/internal/dateutils"
	"fjacquet/ledgerflow/internal/ledger"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/parsererror"
	"fjacquet/ledgerflow/internal/report"

	"github.com/google/uuid"
)

// Runner executes stages with the dependencies of a container.
type Runner struct {
	container *container.Container
	config    *config.Config
	logger    logging.Logger
	now       func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(c *container.Container) *Runner {
	return &Runner{
		container: c,
		config:    c.GetConfig(),
		logger:    c.GetLogger(),
		now:       time.Now,
	}
}

func (r *Runner) start(stage string) (*RunSummary, time.Time, logging.Logger) {
	s := &RunSummary{RunID: uuid.NewString(), Stage: stage}
	logger := r.logger.WithFields(
		logging.Field{Key: logging.FieldRunID, Value: s.RunID},
		logging.Field{Key: logging.FieldPeriod, Value: r.config.Metadata.Period})
	logger.Info("Starting stage", logging.Field{Key: logging.FieldStage, Value: stage})
	return s, r.now(), logger
}

// Normalize reads every configured source in order, merges the batches by
// timestamp and writes the canonical CSV to output, or to the configured
// transactions path when output is empty.
func (r *Runner) Normalize(ctx context.Context, output string) (*RunSummary, error) {
	summary, started, logger := r.start(StageNormalize)
	if err := r.normalize(ctx, summary, output, logger); err != nil {
		return summary, err
	}
	summary.Duration = r.now().Sub(started)
	return summary, nil
}

func (r *Runner) normalize(ctx context.Context, summary *RunSummary, output string, logger logging.Logger) error {
	if output == "" {
		output = r.config.TransactionsPath()
	}
	if err := r.config.ValidateInputs(); err != nil {
		return err
	}

	norm := r.container.GetNormalizer()
	batches := make([][]models.Transaction, 0, len(r.config.Sources))
	for i, src := range r.config.Sources {
		files, err := r.config.SourceFiles(i)
		if err != nil {
			return err
		}
		var batch []models.Transaction
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := norm.NormalizeFile(file, src.Name, src.Provider)
			if err != nil {
				return err
			}
			logger.Info("Normalized export",
				logging.Field{Key: logging.FieldSource, Value: src.Name},
				logging.Field{Key: logging.FieldProvider, Value: result.Provider},
				logging.Field{Key: logging.FieldInputFile, Value: file},
				logging.Field{Key: logging.FieldCount, Value: len(result.Transactions)},
				logging.Field{Key: "dropped", Value: result.Dropped})
			summary.InputFiles = append(summary.InputFiles, file)
			summary.Dropped += result.Dropped
			summary.Issues = append(summary.Issues, result.Issues...)
			batch = append(batch, result.Transactions...)
		}
		batches = append(batches, batch)
	}

	merged := ledger.Merge(batches...)
	if err := r.container.GetStore().WriteCanonical(output, merged); err != nil {
		return err
	}
	summary.OutputFile = output
	summary.Rows = len(merged)
	return nil
}

// Annotate reads the CSV at input, labels every row and writes the annotated
// CSV to output along with a YAML audit trail. Both paths default to the
// configured transactions path, so the checkpoint is updated in place.
func (r *Runner) Annotate(ctx context.Context, input, output string) (*RunSummary, error) {
	summary, started, logger := r.start(StageAnnotate)
	if err := r.annotate(ctx, summary, input, output, logger); err != nil {
		return summary, err
	}
	summary.Duration = r.now().Sub(started)
	return summary, nil
}

func (r *Runner) annotate(ctx context.Context, summary *RunSummary, input, output string, logger logging.Logger) error {
	if input == "" {
		input = r.config.TransactionsPath()
	}
	if output == "" {
		output = input
	}

	read, err := r.container.GetStore().ReadLedger(input)
	if err != nil {
		return err
	}
	summary.InputFiles = append(summary.InputFiles, input)
	summary.Issues = append(summary.Issues, read.Issues...)
	if len(read.Issues) > 0 && samePath(input, output) {
		// rewriting in place would silently drop the rows that failed to parse
		return &parsererror.InvalidFormatError{
			FilePath:       input,
			ExpectedFormat: strings.Join(ledger.AnnotatedHeader, ","),
			Msg:            fmt.Sprintf("malformed rows at lines %s; fix them or annotate to a different output", issueLines(read.Issues)),
		}
	}

	ann, err := r.container.GetAnnotator(ctx)
	if err != nil {
		return err
	}
	result, err := ann.Annotate(ctx, read.Transactions)
	if err != nil {
		// a partial ledger would lose the remaining rows; leave the file untouched
		return fmt.Errorf("annotation interrupted after %d of %d rows: %w", len(result.Transactions), len(read.Transactions), err)
	}
	summary.Stats = result.Stats
	summary.Failures = result.Failures

	if err := r.container.GetStore().WriteAnnotated(output, result.Transactions); err != nil {
		return err
	}
	summary.OutputFile = output
	summary.Rows = len(result.Transactions)

	cfg := r.config
	auditPath := annotator.AuditPath(output)
	trail := annotator.AuditTrail{
		RunID:       summary.RunID,
		Period:      cfg.Metadata.Period,
		Model:       cfg.Model.Provider + "/" + cfg.Model.Name,
		GeneratedAt: r.now().Format(time.RFC3339),
		Stats:       result.Stats,
		Decisions:   result.Decisions,
	}
	if err := annotator.WriteAudit(auditPath, trail); err != nil {
		return err
	}
	summary.AuditFile = auditPath
	logger.Debug("Wrote audit trail", logging.Field{Key: logging.FieldOutputFile, Value: auditPath})
	return nil
}

// Process runs Normalize then Annotate on the resulting file.
func (r *Runner) Process(ctx context.Context, output string) (*RunSummary, error) {
	summary, started, logger := r.start(StageProcess)
	if output == "" {
		output = r.config.TransactionsPath()
	}

	normalized := &RunSummary{RunID: summary.RunID, Stage: StageNormalize}
	err := r.normalize(ctx, normalized, output, logger)
	summary.absorb(normalized)
	if err != nil {
		return summary, err
	}

	annotated := &RunSummary{RunID: summary.RunID, Stage: StageAnnotate}
	err = r.annotate(ctx, annotated, output, output, logger)
	// the annotate stage re-reads the normalized file
	annotated.InputFiles = nil
	summary.absorb(annotated)
	if err != nil {
		return summary, err
	}
	summary.Duration = r.now().Sub(started)
	return summary, nil
}

// Report summarizes the annotated CSV at input and writes the report to
// output in format (markdown or json). Empty paths use the configured ones.
func (r *Runner) Report(input, output, format string) (*RunSummary, error) {
	summary, started, logger := r.start(StageReport)
	if input == "" {
		input = r.config.TransactionsPath()
	}
	if output == "" {
		output = r.config.ReportPath()
	}

	read, err := r.container.GetStore().ReadLedger(input)
	if err != nil {
		return summary, err
	}
	summary.InputFiles = append(summary.InputFiles, input)
	summary.Issues = append(summary.Issues, read.Issues...)
	if !read.HasCategory {
		logger.Warn("Ledger has no category column; every expense is reported as uncategorized",
			logging.Field{Key: logging.FieldInputFile, Value: input})
	}
	if summary.OutsidePeriod = outsidePeriod(read.Transactions, r.config.Metadata.Period); summary.OutsidePeriod > 0 {
		logger.Warn("Transactions outside the report period",
			logging.Field{Key: logging.FieldInputFile, Value: input},
			logging.Field{Key: logging.FieldCount, Value: summary.OutsidePeriod})
	}

	opts := report.Options{
		Period:         r.config.Metadata.Period,
		Tag:            r.config.Metadata.Tag,
		CurrencySymbol: r.config.Report.CurrencySymbol,
		GeneratedAt:    r.now(),
	}
	result, err := r.container.GetReportGenerator().WriteReport(output, read.Transactions, opts, format)
	if err != nil {
		return summary, err
	}
	summary.Report = &result
	summary.OutputFile = output
	summary.Rows = len(read.Transactions)
	summary.Duration = r.now().Sub(started)
	return summary, nil
}

// outsidePeriod counts transactions outside the month named by period. A
// period that is not a month ("2024 Q2") is not checked.
func outsidePeriod(transactions []models.Transaction, period string) int {
	start, end, ok := dateutils.MonthRange(period)
	if !ok {
		return 0
	}
	n := 0
	for _, tx := range transactions {
		if tx.Timestamp.Before(start) || !tx.Timestamp.Before(end) {
			n++
		}
	}
	return n
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func issueLines(issues []*parsererror.RowError) string {
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, strconv.Itoa(issue.Line))
	}
	return strings.Join(lines, ", ")
}
