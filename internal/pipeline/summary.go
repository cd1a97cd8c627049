package pipeline

import (
	"time"

	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/parsererror"
	"fjacquet/ledgerflow/internal/report"
)

// Stage names
const (
	StageNormalize = "normalize"
	StageAnnotate  = "annotate"
	StageProcess   = "process"
	StageReport    = "report"
)

// RunSummary describes one stage run. Row issues and collaborator failures
// are recovered errors; they are reported here instead of failing the run.
type RunSummary struct {
	RunID      string
	Stage      string
	InputFiles []string
	OutputFile string
	AuditFile  string
	// Rows is the number of transactions written.
	Rows    int
	Dropped int
	// OutsidePeriod counts reported transactions outside the configured month.
	OutsidePeriod int
	Issues        []*parsererror.RowError
	Failures      []*parsererror.CollaboratorError
	Stats         models.AnnotationStats
	Report        *report.Summary
	Duration      time.Duration
}

// Fallbacks is the number of rows that ended up uncategorized.
func (s *RunSummary) Fallbacks() int {
	return s.Stats.Fallback
}

// Log writes the summary as a single INFO entry. Individual row issues were
// already logged when they occurred.
func (s *RunSummary) Log(logger logging.Logger) {
	if logger == nil {
		return
	}
	fields := []logging.Field{
		{Key: logging.FieldRunID, Value: s.RunID},
		{Key: logging.FieldStage, Value: s.Stage},
		{Key: logging.FieldCount, Value: s.Rows},
		{Key: "dropped", Value: s.Dropped},
		{Key: "row_issues", Value: len(s.Issues)},
		{Key: logging.FieldDuration, Value: s.Duration.Milliseconds()},
	}
	if s.OutputFile != "" {
		fields = append(fields, logging.Field{Key: logging.FieldOutputFile, Value: s.OutputFile})
	}
	if s.Stats.Total > 0 {
		fields = append(fields,
			logging.Field{Key: "fallbacks", Value: s.Fallbacks()},
			logging.Field{Key: "call_failures", Value: len(s.Failures)})
	}
	logger.Info("Run complete", fields...)
}

func (s *RunSummary) absorb(other *RunSummary) {
	s.InputFiles = append(s.InputFiles, other.InputFiles...)
	s.OutputFile = other.OutputFile
	s.AuditFile = other.AuditFile
	s.Rows = other.Rows
	s.Dropped += other.Dropped
	s.Issues = append(s.Issues, other.Issues...)
	s.Failures = append(s.Failures, other.Failures...)
	s.Stats = other.Stats
}
