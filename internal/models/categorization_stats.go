package models

import (
	"fjacquet/ledgerflow/internal/logging"
)

// Annotation outcomes recorded per transaction
const (
	OutcomeModel    = "model"
	OutcomeFallback = "fallback"
	OutcomeKept     = "kept"
)

// AnnotationStats tracks how each transaction of a run received its category.
type AnnotationStats struct {
	Total     int `yaml:"total"`         // Transactions seen
	Model     int `yaml:"model"`         // Labelled from a recognised model answer
	Fallback  int `yaml:"fallback"`      // Set to the fallback label
	Kept      int `yaml:"kept"`          // Already carried a valid label
	CallFails int `yaml:"call_failures"` // Transactions whose collaborator calls all failed
}

// Record increments the counter matching outcome.
func (s *AnnotationStats) Record(outcome string) {
	s.Total++
	switch outcome {
	case OutcomeModel:
		s.Model++
	case OutcomeFallback:
		s.Fallback++
	case OutcomeKept:
		s.Kept++
	}
}

// GetSuccessRate returns the share of model-labelled transactions among the
// ones that were sent to the model, as a percentage.
func (s AnnotationStats) GetSuccessRate() float64 {
	sent := s.Total - s.Kept
	if sent <= 0 {
		return 0.0
	}
	return float64(s.Model) / float64(sent) * 100.0
}

// LogSummary logs a summary of annotation statistics
func (s AnnotationStats) LogSummary(logger logging.Logger) {
	if logger == nil {
		return
	}

	logger.Info("Annotation summary",
		logging.Field{Key: logging.FieldCount, Value: s.Total},
		logging.Field{Key: "model", Value: s.Model},
		logging.Field{Key: "fallback", Value: s.Fallback},
		logging.Field{Key: "kept", Value: s.Kept},
		logging.Field{Key: "call_failures", Value: s.CallFails},
		logging.Field{Key: "success_rate", Value: s.GetSuccessRate()},
	)
}
