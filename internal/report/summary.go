// Package report aggregates annotated transactions and renders the period report.
package report

import (
	"sort"
	"strings"
	"time"

	"fjacquet/ledgerflow/internal/dateutils"
	"fjacquet/ledgerflow/internal/models"

	"github.com/shopspring/decimal"
)

// TopExpenseLimit is the number of rows in the largest-expenses table.
const TopExpenseLimit = 10

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Summary holds every figure the report shows.
type Summary struct {
	TotalIncome  decimal.Decimal      `json:"total_income"`
	TotalExpense decimal.Decimal      `json:"total_expense"`
	Net          decimal.Decimal      `json:"net"`
	IncomeCount  int                  `json:"income_count"`
	ExpenseCount int                  `json:"expense_count"`
	Categories   []CategoryTotal      `json:"categories"`
	TopExpenses  []models.Transaction `json:"top_expenses"`
	First        time.Time            `json:"first"`
	Last         time.Time            `json:"last"`
}

// Summarize computes totals, per-category expenses and the largest expenses.
// Categories are ordered by total descending, ties by first appearance.
// Expenses without a category count as uncategorized.
func Summarize(transactions []models.Transaction) Summary {
	s := Summary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Categories:   []CategoryTotal{},
		TopExpenses:  []models.Transaction{},
	}

	positions := make(map[string]int)
	var expenses []models.Transaction
	timestamps := make([]time.Time, 0, len(transactions))

	for _, tx := range transactions {
		timestamps = append(timestamps, tx.Timestamp)
		switch tx.Direction {
		case models.DirectionIncome:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
			s.IncomeCount++
		case models.DirectionExpense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
			s.ExpenseCount++
			expenses = append(expenses, tx)

			label := strings.TrimSpace(tx.Category)
			if label == "" {
				label = models.FallbackCategory
			}
			idx, ok := positions[label]
			if !ok {
				idx = len(s.Categories)
				positions[label] = idx
				s.Categories = append(s.Categories, CategoryTotal{Category: label, Total: decimal.Zero})
			}
			s.Categories[idx].Total = s.Categories[idx].Total.Add(tx.Amount)
			s.Categories[idx].Count++
		}
	}
	s.Net = s.TotalIncome.Sub(s.TotalExpense)
	s.First, s.Last = dateutils.Span(timestamps)

	// zero-amount expenses do not make a category worth listing
	kept := s.Categories[:0]
	for _, c := range s.Categories {
		if !c.Total.IsZero() {
			kept = append(kept, c)
		}
	}
	s.Categories = kept
	sort.SliceStable(s.Categories, func(i, j int) bool {
		return s.Categories[i].Total.GreaterThan(s.Categories[j].Total)
	})

	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Amount.GreaterThan(expenses[j].Amount)
	})
	if len(expenses) > TopExpenseLimit {
		expenses = expenses[:TopExpenseLimit]
	}
	s.TopExpenses = append(s.TopExpenses, expenses...)

	return s
}

// Share returns c's part of the total expense as a percentage.
func (s Summary) Share(c CategoryTotal) decimal.Decimal {
	if s.TotalExpense.IsZero() {
		return decimal.Zero
	}
	return c.Total.Div(s.TotalExpense).Mul(decimal.NewFromInt(100)).Round(1)
}
