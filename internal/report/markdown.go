package report

import (
	"fmt"
	"strings"
	"time"

	"fjacquet/ledgerflow/internal/currencyutils"
	"fjacquet/ledgerflow/internal/models"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol prefixes amounts when none is configured.
const DefaultCurrencySymbol = "¥"

const noExpenses = "No expenses recorded"

// Options control the rendered document.
type Options struct {
	Period         string
	Tag            string
	CurrencySymbol string
	// GeneratedAt is printed under the title when set.
	GeneratedAt time.Time
}

var strictPolicy = bluemonday.StrictPolicy()

// RenderMarkdown renders s as a Markdown document with three sections in a
// fixed order: overview, expenses by category, and the largest expenses.
func RenderMarkdown(s Summary, opts Options) string {
	symbol := opts.CurrencySymbol
	if symbol == "" {
		symbol = DefaultCurrencySymbol
	}
	money := func(d decimal.Decimal) string {
		return currencyutils.FormatAmount(d, symbol)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Report\n\n", cellText(opts.Period))
	if opts.Tag != "" {
		fmt.Fprintf(&b, "Tag: %s\n\n", cellText(opts.Tag))
	}
	if !opts.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n\n", opts.GeneratedAt.Format(models.TimestampLayout))
	}

	b.WriteString("## Overview\n\n")
	b.WriteString("| Item | Amount | Count |\n")
	b.WriteString("| --- | ---: | ---: |\n")
	fmt.Fprintf(&b, "| Income | %s | %d |\n", money(s.TotalIncome), s.IncomeCount)
	fmt.Fprintf(&b, "| Expense | %s | %d |\n", money(s.TotalExpense), s.ExpenseCount)
	fmt.Fprintf(&b, "| Net | %s | %d |\n", money(s.Net), s.IncomeCount+s.ExpenseCount)
	if !s.First.IsZero() {
		fmt.Fprintf(&b, "\nCovering %s to %s.\n", s.First.Format("2006-01-02"), s.Last.Format("2006-01-02"))
	}

	b.WriteString("\n## Expenses by category\n\n")
	b.WriteString("| Category | Amount | Count | Share |\n")
	b.WriteString("| --- | ---: | ---: | ---: |\n")
	if len(s.Categories) == 0 {
		fmt.Fprintf(&b, "| %s | %s | 0 | - |\n", noExpenses, money(decimal.Zero))
	}
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "| %s | %s | %d | %s%% |\n", cellText(c.Category), money(c.Total), c.Count, s.Share(c).StringFixed(1))
	}

	fmt.Fprintf(&b, "\n## Top %d expenses\n\n", TopExpenseLimit)
	b.WriteString("| # | Time | Counterparty | Description | Category | Amount |\n")
	b.WriteString("| ---: | --- | --- | --- | --- | ---: |\n")
	if len(s.TopExpenses) == 0 {
		fmt.Fprintf(&b, "| - | - | %s | - | - | %s |\n", noExpenses, money(decimal.Zero))
	}
	for i, tx := range s.TopExpenses {
		category := tx.Category
		if strings.TrimSpace(category) == "" {
			category = models.FallbackCategory
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			i+1,
			tx.FormattedTimestamp(),
			cellText(tx.Counterparty),
			cellText(tx.RawDescription),
			cellText(category),
			money(tx.Amount))
	}

	return b.String()
}

// cellText strips markup and keeps the text inside one table cell.
func cellText(s string) string {
	s = strictPolicy.Sanitize(s)
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "|", `\|`).Replace(s)
	return strings.TrimSpace(s)
}
