package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLogger_DerivedLoggersShareEntries(t *testing.T) {
	logger := NewMockLogger()
	child := logger.WithField(FieldLine, 3)
	child.WithError(errors.New("boom")).Warn("row skipped", Field{Key: FieldReason, Value: "bad amount"})
	logger.Info("done")

	entries := logger.GetEntries()
	require.Len(t, entries, 2)

	assert.Equal(t, "WARN", entries[0].Level)
	assert.EqualError(t, entries[0].Error, "boom")
	line, ok := entries[0].Field(FieldLine)
	assert.True(t, ok)
	assert.Equal(t, 3, line)

	assert.True(t, logger.HasEntry("INFO", "done"))
	assert.Len(t, logger.GetEntriesByLevel("WARN"), 1)
	assert.Len(t, logger.GetEntriesWithField(FieldReason, "bad amount"), 1)

	logger.Clear()
	assert.Empty(t, logger.GetEntries())
}

func TestMockLogger_ZeroValue(t *testing.T) {
	var logger MockLogger
	logger.Info("works without constructor")
	assert.Len(t, logger.GetEntries(), 1)
}
