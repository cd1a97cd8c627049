// Package currencyutils provides the amount parsing and formatting shared by
// the normalizers and the report.
package currencyutils

import (
	"fmt"
	"strings"

	"fjacquet/ledgerflow/internal/models"

	"github.com/shopspring/decimal"
)

var symbolCleaner = strings.NewReplacer(
	"¥", "", "￥", "", "$", "", "€", "", "£", "", "CHF", "", "CNY", "", "RMB", "", "元", "",
	" ", "", "\u00a0", "", "\t", "", "'", "",
)

// ParseAmount parses an export amount such as "¥1,234.56", "(12.50)" or
// "1.234,56" and rounds it to two decimal places. Parentheses mark negatives.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	standardized := StandardizeAmount(amountStr)
	if standardized == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}
	return amount.Round(models.AmountPlaces), nil
}

// StandardizeAmount strips currency symbols and separators so that the result
// can be read by decimal.NewFromString.
func StandardizeAmount(amountStr string) string {
	s := symbolCleaner.Replace(strings.TrimSpace(amountStr))

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		if strings.LastIndex(s, ".") < strings.LastIndex(s, ",") {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if negative && s != "" {
		s = "-" + strings.TrimPrefix(s, "-")
	}
	return s
}

// FormatAmount renders amount with two decimals behind symbol, keeping the
// sign in front: "-¥12.50".
func FormatAmount(amount decimal.Decimal, symbol string) string {
	if amount.IsNegative() {
		return "-" + symbol + amount.Abs().StringFixed(models.AmountPlaces)
	}
	return symbol + amount.StringFixed(models.AmountPlaces)
}
