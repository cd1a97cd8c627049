package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Direction
		wantErr  bool
	}{
		{name: "income", input: "income", expected: DirectionIncome},
		{name: "expense with spaces and case", input: "  Expense ", expected: DirectionExpense},
		{name: "unknown", input: "transfer", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDirection(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	valid := Transaction{
		Timestamp: time.Date(2025, 4, 27, 10, 42, 19, 0, time.UTC),
		Direction: DirectionExpense,
		Amount:    decimal.RequireFromString("37.00"),
	}
	assert.NoError(t, valid.Validate())

	noTime := valid
	noTime.Timestamp = time.Time{}
	assert.Error(t, noTime.Validate())

	badDirection := valid
	badDirection.Direction = "neutral"
	assert.Error(t, badDirection.Validate())

	negative := valid
	negative.Amount = decimal.RequireFromString("-1")
	assert.Error(t, negative.Validate())
}

func TestTransaction_Formatting(t *testing.T) {
	tx := Transaction{
		Timestamp: time.Date(2025, 4, 1, 9, 5, 0, 0, time.UTC),
		Amount:    decimal.RequireFromString("12.5"),
	}
	assert.Equal(t, "2025-04-01 09:05:00", tx.FormattedTimestamp())
	assert.Equal(t, "12.50", tx.FormattedAmount())
	assert.False(t, tx.HasCategory())

	tx.Category = "Dining"
	assert.True(t, tx.HasCategory())
}

func TestAnnotationStats(t *testing.T) {
	var stats AnnotationStats
	stats.Record(OutcomeModel)
	stats.Record(OutcomeModel)
	stats.Record(OutcomeFallback)
	stats.Record(OutcomeKept)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Model)
	assert.Equal(t, 1, stats.Fallback)
	assert.Equal(t, 1, stats.Kept)
	assert.InDelta(t, 66.67, stats.GetSuccessRate(), 0.01)

	var empty AnnotationStats
	assert.Equal(t, 0.0, empty.GetSuccessRate())
}
