// Package parsererror defines the typed errors shared by the pipeline stages.
// Configuration and write errors abort a run; row and collaborator errors are
// recovered and reported in the run summary.
package parsererror

import "fmt"

// ParseError represents a field that could not be parsed
type ParseError struct {
	Parser string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse %s='%s': %v",
		e.Parser, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RowError describes a raw or canonical CSV row that was skipped.
type RowError struct {
	File string
	Line int
	Raw  string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s:%d: skipped row '%s': %v", e.File, e.Line, e.Raw, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ConfigError is a fatal configuration problem tied to a config field.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CollaboratorError represents a failed call to the category model after all retries.
type CollaboratorError struct {
	Collaborator string
	Attempts     int
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Collaborator, e.Attempts, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// WriteError is a fatal failure to persist an output file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// InvalidFormatError represents an error where the input file does not conform
// to the expected format for a specific provider.
type InvalidFormatError struct {
	FilePath             string
	ExpectedFormat       string
	ActualContentSnippet string // Optional: a snippet of the actual content for debugging
	Msg                  string
}

func (e *InvalidFormatError) Error() string {
	if e.ActualContentSnippet != "" {
		return fmt.Sprintf("invalid format in file '%s': %s. Expected: %s. Content snippet: '%s'",
			e.FilePath, e.Msg, e.ExpectedFormat, e.ActualContentSnippet)
	}
	return fmt.Sprintf("invalid format in file '%s': %s. Expected: %s",
		e.FilePath, e.Msg, e.ExpectedFormat)
}
