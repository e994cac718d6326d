package metrics

import (
	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

// Share is one pie slice: the category's percentage of the total.
type Share struct {
	Category core.Category
	Amount   decimal.Decimal
	Percent  float64
}

// Bar is one row of the category bar chart; Width is 0-100 relative to the
// largest category.
type Bar struct {
	Category core.Category
	Amount   decimal.Decimal
	Width    int
}

// CategoryShares converts a breakdown into pie chart percentages.
func CategoryShares(byCategory []core.CategoryAmount) []Share {
	total := decimal.Zero
	for _, r := range byCategory {
		total = total.Add(r.Amount)
	}
	out := make([]Share, 0, len(byCategory))
	for _, r := range byCategory {
		out = append(out, Share{Category: r.Category, Amount: r.Amount, Percent: percentOf(r.Amount, total)})
	}
	return out
}

// BarWidths scales each category against the largest one. Widths are
// rounded, and any non-zero amount gets at least 2 so it stays visible.
func BarWidths(byCategory []core.CategoryAmount) []Bar {
	max := decimal.Zero
	for _, r := range byCategory {
		if r.Amount.GreaterThan(max) {
			max = r.Amount
		}
	}
	out := make([]Bar, 0, len(byCategory))
	for _, r := range byCategory {
		width := 0
		if max.IsPositive() && r.Amount.IsPositive() {
			width = int(r.Amount.Mul(hundred).Div(max).Round(0).IntPart())
			if width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		out = append(out, Bar{Category: r.Category, Amount: r.Amount, Width: width})
	}
	return out
}
