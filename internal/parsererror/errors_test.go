package parsererror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ParseError
		expected string
	}{
		{
			name: "basic parse error",
			err: &ParseError{
				Parser: "alipay",
				Field:  "amount",
				Value:  "abc",
				Err:    errors.New("invalid decimal"),
			},
			expected: "alipay: failed to parse amount='abc': invalid decimal",
		},
		{
			name: "parse error with empty value",
			err: &ParseError{
				Parser: "wechat",
				Field:  "time",
				Value:  "",
				Err:    errors.New("empty date"),
			},
			expected: "wechat: failed to parse time='': empty date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestParseError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	parseErr := &ParseError{Parser: "bank", Field: "amount", Value: "x", Err: originalErr}

	assert.Equal(t, originalErr, parseErr.Unwrap())
	assert.True(t, errors.Is(parseErr, originalErr))
}

func TestRowError(t *testing.T) {
	cause := &ParseError{Parser: "bank", Field: "amount", Value: "x", Err: errors.New("bad")}
	err := &RowError{File: "raw.csv", Line: 7, Raw: "2025-04-01,x", Err: cause}

	assert.Equal(t, "raw.csv:7: skipped row '2025-04-01,x': bank: failed to parse amount='x': bad", err.Error())

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "amount", parseErr.Field)
}

func TestConfigError(t *testing.T) {
	plain := &ConfigError{Field: "metadata.period", Reason: "must be set"}
	assert.Equal(t, "invalid configuration metadata.period: must be set", plain.Error())

	cause := errors.New("no such file")
	wrapped := fmt.Errorf("loading: %w", &ConfigError{Field: "sources[0].paths", Reason: "missing input file", Err: cause})
	assert.Contains(t, wrapped.Error(), "sources[0].paths")
	assert.True(t, errors.Is(wrapped, cause))

	var cfgErr *ConfigError
	assert.True(t, errors.As(wrapped, &cfgErr))
	assert.Equal(t, "sources[0].paths", cfgErr.Field)
}

func TestCollaboratorError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &CollaboratorError{Collaborator: "ollama", Attempts: 3, Err: cause}

	assert.Equal(t, "ollama failed after 3 attempt(s): connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestWriteError(t *testing.T) {
	cause := errors.New("permission denied")
	err := &WriteError{Path: "/out/report.md", Err: cause}

	assert.Equal(t, "failed to write /out/report.md: permission denied", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestInvalidFormatError(t *testing.T) {
	err := &InvalidFormatError{
		FilePath:       "wechat.csv",
		ExpectedFormat: "wechat export",
		Msg:            "header row not found",
	}
	assert.Equal(t, "invalid format in file 'wechat.csv': header row not found. Expected: wechat export", err.Error())

	err.ActualContentSnippet = "foo,bar"
	assert.Contains(t, err.Error(), "Content snippet: 'foo,bar'")
}
