package logging

// Standardized field names for structured logging.
// These constants keep log output consistent across the pipeline stages.
const (
	FieldFile         = "file_path"
	FieldProvider     = "provider"
	FieldSource       = "source"
	FieldLine         = "line"
	FieldRaw          = "raw"
	FieldCategory     = "category"
	FieldReason       = "reason"
	FieldOutcome      = "outcome"
	FieldAttempt      = "attempt"
	FieldStage        = "stage"
	FieldError        = "error"
	FieldDuration     = "duration_ms"
	FieldCount        = "count"
	FieldCounterparty = "counterparty"
	FieldPeriod       = "period"
	FieldRunID        = "run_id"
	FieldInputFile    = "input_file"
	FieldOutputFile   = "output_file"
)
