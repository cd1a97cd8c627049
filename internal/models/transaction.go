// Package models provides the data structures used throughout the application.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether money came in or went out.
type Direction string

// String returns the direction as written to CSV.
func (d Direction) String() string {
	return string(d)
}

// IsValid reports whether d is income or expense.
func (d Direction) IsValid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

// ParseDirection parses the canonical CSV representation of a direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionIncome:
		return DirectionIncome, nil
	case DirectionExpense:
		return DirectionExpense, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Transaction is the provider-independent record flowing through the pipeline.
// It is created by a normalizer, receives its Category once during annotation,
// and is read-only afterwards.
type Transaction struct {
	Timestamp      time.Time       `json:"timestamp"`
	Source         string          `json:"source"`
	Counterparty   string          `json:"counterparty"`
	Direction      Direction       `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	RawDescription string          `json:"raw_description"`
	Category       string          `json:"category,omitempty"`
}

// Validate checks the invariants every normalized transaction must satisfy.
func (t Transaction) Validate() error {
	if t.Timestamp.IsZero() {
		return fmt.Errorf("transaction has no timestamp")
	}
	if !t.Direction.IsValid() {
		return fmt.Errorf("transaction has invalid direction %q", t.Direction)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction amount %s is negative", t.Amount.String())
	}
	return nil
}

// IsExpense returns true for outgoing transactions.
func (t Transaction) IsExpense() bool {
	return t.Direction == DirectionExpense
}

// IsIncome returns true for incoming transactions.
func (t Transaction) IsIncome() bool {
	return t.Direction == DirectionIncome
}

// HasCategory reports whether annotation (or a human) already set a label.
func (t Transaction) HasCategory() bool {
	return strings.TrimSpace(t.Category) != ""
}

// FormattedAmount returns the amount with two decimal places.
func (t Transaction) FormattedAmount() string {
	return t.Amount.StringFixed(AmountPlaces)
}

// FormattedTimestamp returns the timestamp in the canonical layout.
func (t Transaction) FormattedTimestamp() string {
	return t.Timestamp.Format(TimestampLayout)
}
