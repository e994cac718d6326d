package http

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/store"
)

// formatRupees renders an amount with the rupee sign, thousands separators
// and two decimals, e.g. "₹1,250.50".
func formatRupees(d decimal.Decimal) string {
	r := d.Round(2)
	neg := r.IsNegative()
	intPart, frac, _ := strings.Cut(r.Abs().StringFixed(2), ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := "₹" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// formatPercent renders a ratio already expressed in percent, e.g. "12.34%".
func formatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

// formatPlain renders an amount for a form field: two decimals, no sign.
func formatPlain(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// baselineField is the form field name of a baseline category.
func baselineField(cat core.Category) string {
	return store.SQLColumn(cat)
}

// sanitizeInput removes control characters other than tab and newlines
// and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
