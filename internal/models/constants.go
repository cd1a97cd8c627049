package models

// Directions as written to the canonical CSV
const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// FallbackCategory is assigned when annotation fails or the model answers
// with a label outside the configured set.
const FallbackCategory = "uncategorized"

// TimestampLayout is the canonical text form of Transaction.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// AmountPlaces is the number of decimal places kept for every amount.
const AmountPlaces = 2

// File permissions
const (
	PermissionDirectory  = 0750
	PermissionOutputFile = 0644
)
