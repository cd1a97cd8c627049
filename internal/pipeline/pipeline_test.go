package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fjacquet/ledgerflow/internal/annotator"
	"fjacquet/ledgerflow/internal/config"
	"fjacquet/ledgerflow/internal/container"
	"fjacquet/ledgerflow/internal/ledger"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/parsererror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineConfig = `
metadata:
  period: "2024-06"
  tag: household
sources:
  - name: checking
    provider: bank
    paths: [raw/checking.csv]
output:
  transactions: out/{period}-transactions.csv
  report: out/{period}-report.md
model:
  provider: ollama
  name: test-model
  retry_delay_ms: 0
categories: [Salary, Dining, Transport]
`

// Five income rows, five expense rows, two pending rows and one transfer.
const checkingExport = `Date,Payee,Memo,Amount,Status,Type
2024-06-01,ACME Corp,Salary,1000.00,completed,credit
2024-06-02,Noodle Bar,Lunch,-40.00,completed,card
2024-06-03,Client A,Invoice 12,200.00,completed,credit
2024-06-04,Metro,Ticket,-10.00,completed,card
2024-06-05,Bookshop,Pending order,-35.00,pending,card
2024-06-06,Client B,Invoice 13,50.00,completed,credit
2024-06-07,Bistro,Dinner,-100.00,completed,card
2024-06-08,Savings,Monthly saving,-300.00,completed,transfer
2024-06-09,Bank,Interest,25.50,completed,credit
2024-06-10,Taxi,Airport,-30.00,completed,card
2024-06-11,Refund Co,Pending refund,12.00,pending,credit
2024-06-12,Cashback,Card bonus,4.50,completed,credit
2024-06-13,Bakery,Bread,-20.00,completed,card
`

type fixture struct {
	cfg    *config.Config
	runner *Runner
	logger *logging.MockLogger
	calls  *int
}

func newFixture(t *testing.T, export string, answer func(prompt string) (string, error)) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "raw"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw", "checking.csv"), []byte(export), 0600))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineConfig), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	calls := 0
	stub := annotator.CollaboratorFunc(func(_ context.Context, prompt string, _ []string) (string, error) {
		calls++
		return answer(prompt)
	})
	logger := logging.NewMockLogger()
	c, err := container.NewContainer(cfg, container.WithCollaborator(stub), container.WithLogger(logger))
	require.NoError(t, err)

	runner := NewRunner(c)
	runner.now = func() time.Time { return time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC) }
	return &fixture{cfg: cfg, runner: runner, logger: logger, calls: &calls}
}

func alwaysDining(string) (string, error) {
	return `{"category":"Dining","reason":"food"}`, nil
}

func TestRunner_EndToEnd(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	ctx := context.Background()

	normalized, err := f.runner.Normalize(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 10, normalized.Rows)
	assert.Equal(t, 3, normalized.Dropped)
	assert.Empty(t, normalized.Issues)
	assert.Equal(t, f.cfg.TransactionsPath(), normalized.OutputFile)
	assert.NotEmpty(t, normalized.RunID)

	annotated, err := f.runner.Annotate(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 10, annotated.Rows)
	assert.Equal(t, 10, *f.calls)
	assert.Equal(t, 10, annotated.Stats.Model)
	assert.Equal(t, 0, annotated.Fallbacks())
	assert.NotEqual(t, normalized.RunID, annotated.RunID)

	read, err := ledger.NewStore(f.logger).ReadLedger(f.cfg.TransactionsPath())
	require.NoError(t, err)
	require.True(t, read.HasCategory)
	require.Len(t, read.Transactions, 10)
	for _, tx := range read.Transactions {
		assert.Equal(t, "Dining", tx.Category)
	}

	trail, err := annotator.ReadAudit(annotated.AuditFile)
	require.NoError(t, err)
	assert.Equal(t, annotated.RunID, trail.RunID)
	assert.Equal(t, "ollama/test-model", trail.Model)
	assert.Len(t, trail.Decisions, 10)

	reported, err := f.runner.Report("", "", "")
	require.NoError(t, err)
	require.NotNil(t, reported.Report)
	assert.Equal(t, "1280.00", reported.Report.TotalIncome.StringFixed(2))
	assert.Equal(t, "200.00", reported.Report.TotalExpense.StringFixed(2))
	assert.Equal(t, "1080.00", reported.Report.Net.StringFixed(2))
	assert.Equal(t, 5, reported.Report.IncomeCount)
	assert.Equal(t, 5, reported.Report.ExpenseCount)
	require.Len(t, reported.Report.Categories, 1)
	assert.Equal(t, "Dining", reported.Report.Categories[0].Category)
	assert.Equal(t, 0, reported.OutsidePeriod)

	doc, err := os.ReadFile(f.cfg.ReportPath())
	require.NoError(t, err)
	content := string(doc)
	assert.True(t, strings.HasPrefix(content, "# 2024-06 Report\n"))
	assert.Contains(t, content, "| Income | ¥1280.00 | 5 |")
	assert.Contains(t, content, "| Expense | ¥200.00 | 5 |")
	assert.Contains(t, content, "| Net | ¥1080.00 | 10 |")
	assert.Contains(t, content, "| Dining | ¥200.00 | 5 | 100.0% |")
	assert.Contains(t, content, "| 1 | 2024-06-07 00:00:00 | Bistro | Dinner | Dining | ¥100.00 |")
	assert.NotContains(t, content, "Savings")
	assert.NotContains(t, content, "Bookshop")
}

func TestRunner_ProcessIsIdempotent(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	ctx := context.Background()

	first, err := f.runner.Process(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, StageProcess, first.Stage)
	assert.Equal(t, 10, first.Rows)
	assert.Equal(t, 3, first.Dropped)
	assert.Equal(t, []string{filepath.Join(f.cfg.BaseDir, "raw", "checking.csv")}, first.InputFiles)
	firstBytes, err := os.ReadFile(f.cfg.TransactionsPath())
	require.NoError(t, err)

	_, err = f.runner.Process(ctx, "")
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(f.cfg.TransactionsPath())
	require.NoError(t, err)
	assert.Equal(t, string(firstBytes), string(secondBytes))
}

func TestRunner_AnnotateKeepsExistingLabels(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	ctx := context.Background()

	_, err := f.runner.Process(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 10, *f.calls)

	again, err := f.runner.Annotate(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 10, *f.calls, "labelled rows must not be sent again")
	assert.Equal(t, 10, again.Stats.Kept)
}

func TestRunner_FallbackAndFailures(t *testing.T) {
	f := newFixture(t, checkingExport, func(prompt string) (string, error) {
		if strings.Contains(prompt, "Metro") {
			return "", errors.New("model offline")
		}
		return "Groceries", nil
	})

	summary, err := f.runner.Process(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Fallbacks())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, 3, summary.Failures[0].Attempts)

	read, err := ledger.NewStore(f.logger).ReadLedger(f.cfg.TransactionsPath())
	require.NoError(t, err)
	for _, tx := range read.Transactions {
		assert.Equal(t, models.FallbackCategory, tx.Category)
	}
}

func TestRunner_RowIssuesAreRecovered(t *testing.T) {
	export := checkingExport + "not-a-date,Shop,Broken,-1.00,completed,card\n2024-06-14,Shop,Broken amount,abc,completed,card\n"
	f := newFixture(t, export, alwaysDining)

	summary, err := f.runner.Normalize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Rows)
	require.Len(t, summary.Issues, 2)
	assert.Equal(t, 15, summary.Issues[0].Line)
	assert.Equal(t, 16, summary.Issues[1].Line)
}

func corruptBistroAmount(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	broken := strings.Replace(string(data), "Bistro,expense,100.00", "Bistro,expense,100.0O", 1)
	require.NotEqual(t, string(data), broken)
	require.NoError(t, os.WriteFile(path, []byte(broken), 0600))
	return []byte(broken)
}

func TestRunner_AnnotateInPlaceRefusesMalformedRows(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	_, err := f.runner.Normalize(context.Background(), "")
	require.NoError(t, err)
	before := corruptBistroAmount(t, f.cfg.TransactionsPath())

	summary, err := f.runner.Annotate(context.Background(), "", "")
	var formatErr *parsererror.InvalidFormatError
	require.True(t, errors.As(err, &formatErr), "got %v", err)
	assert.Equal(t, f.cfg.TransactionsPath(), formatErr.FilePath)
	assert.Contains(t, formatErr.Msg, "lines 7")
	require.Len(t, summary.Issues, 1)
	assert.Equal(t, 7, summary.Issues[0].Line)

	after, err := os.ReadFile(f.cfg.TransactionsPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, 0, *f.calls)
	assert.NoFileExists(t, annotator.AuditPath(f.cfg.TransactionsPath()))
}

func TestRunner_AnnotateMalformedRowsToNewFile(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	_, err := f.runner.Normalize(context.Background(), "")
	require.NoError(t, err)
	before := corruptBistroAmount(t, f.cfg.TransactionsPath())

	out := filepath.Join(f.cfg.BaseDir, "out", "annotated.csv")
	summary, err := f.runner.Annotate(context.Background(), "", out)
	require.NoError(t, err)
	assert.Equal(t, 9, summary.Rows)
	require.Len(t, summary.Issues, 1)
	assert.Equal(t, 7, summary.Issues[0].Line)

	after, err := os.ReadFile(f.cfg.TransactionsPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.FileExists(t, out)
}

func TestRunner_ReportWarnsOutsidePeriod(t *testing.T) {
	export := checkingExport + `2024-07-01,Bakery,Bread,-8.00,completed,card
2024-05-31,Bakery,Bread,-6.00,completed,card
`
	f := newFixture(t, export, alwaysDining)
	_, err := f.runner.Process(context.Background(), "")
	require.NoError(t, err)

	summary, err := f.runner.Report("", "", "")
	require.NoError(t, err)
	assert.Equal(t, 12, summary.Rows)
	assert.Equal(t, 2, summary.OutsidePeriod)

	warnings := f.logger.GetEntriesByLevel("WARN")
	var found bool
	for _, entry := range warnings {
		if entry.Message == "Transactions outside the report period" {
			found = true
			count, ok := entry.Field(logging.FieldCount)
			require.True(t, ok)
			assert.Equal(t, 2, count)
		}
	}
	assert.True(t, found)
}

func TestRunner_NormalizeMissingInput(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	require.NoError(t, os.Remove(filepath.Join(f.cfg.BaseDir, "raw", "checking.csv")))

	_, err := f.runner.Normalize(context.Background(), "")
	var cfgErr *parsererror.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "sources[0].paths[0]", cfgErr.Field)
	assert.NoFileExists(t, f.cfg.TransactionsPath())
}

func TestRunner_OutputOverride(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	out := filepath.Join(t.TempDir(), "custom.csv")

	summary, err := f.runner.Normalize(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, out, summary.OutputFile)
	assert.FileExists(t, out)
	assert.NoFileExists(t, f.cfg.TransactionsPath())
}

func TestRunner_AnnotateCancelledLeavesFileUntouched(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	_, err := f.runner.Normalize(context.Background(), "")
	require.NoError(t, err)
	before, err := os.ReadFile(f.cfg.TransactionsPath())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.runner.Annotate(ctx, "", "")
	require.ErrorIs(t, err, context.Canceled)

	after, err := os.ReadFile(f.cfg.TransactionsPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.NoFileExists(t, annotator.AuditPath(f.cfg.TransactionsPath()))
}

func TestRunner_ReportJSONWithoutCategories(t *testing.T) {
	f := newFixture(t, checkingExport, alwaysDining)
	_, err := f.runner.Normalize(context.Background(), "")
	require.NoError(t, err)

	out := filepath.Join(f.cfg.BaseDir, "out", "report.json")
	summary, err := f.runner.Report("", out, "json")
	require.NoError(t, err)
	require.NotNil(t, summary.Report)
	require.Len(t, summary.Report.Categories, 1)
	assert.Equal(t, models.FallbackCategory, summary.Report.Categories[0].Category)
	assert.True(t, f.logger.HasEntry("WARN", "Ledger has no category column; every expense is reported as uncategorized"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"period": "2024-06"`)
}

func TestRunSummary_Log(t *testing.T) {
	logger := logging.NewMockLogger()
	s := &RunSummary{RunID: "run-1", Stage: StageAnnotate, Rows: 4, OutputFile: "out.csv"}
	s.Stats.Total = 4
	s.Stats.Fallback = 1
	s.Log(logger)

	entries := logger.GetEntriesWithField(logging.FieldRunID, "run-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "Run complete", entries[0].Message)
	fallbacks, ok := entries[0].Field("fallbacks")
	require.True(t, ok)
	assert.Equal(t, 1, fallbacks)
}
