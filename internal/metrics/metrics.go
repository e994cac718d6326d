// Package metrics turns raw ledger rows and user baselines into the summary
// figures shown on the dashboard.
//
// All functions are pure: they take snapshots, return new values and never
// touch the record store.
package metrics

import (
	"errors"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

var hundred = decimal.NewFromInt(100)

// ErrInsufficientData is returned when a cohort statistic is requested over
// an empty set of users.
var ErrInsufficientData = errors.New("insufficient data")

// UserMetrics is the per-user summary of the expense analysis tab.
type UserMetrics struct {
	TotalExpenses decimal.Decimal
	ByCategory    []core.CategoryAmount
	Income        decimal.Decimal
	Savings       decimal.Decimal
	// ExpenseRatio is the share of income spent, in percent.
	ExpenseRatio float64
}

// CohortAverages maps each baseline category to its mean across all users.
type CohortAverages map[core.Category]decimal.Decimal

// Comparison is one row of the "comparison with average" table.
type Comparison struct {
	Category          core.Category
	UserAmount        decimal.Decimal
	Average           decimal.Decimal
	PercentDifference float64
}

// GroupByUser indexes expenses by username, keeping ledger order.
func GroupByUser(expenses []core.Expense) map[string][]core.Expense {
	out := make(map[string][]core.Expense)
	for _, e := range expenses {
		out[e.Username] = append(out[e.Username], e)
	}
	return out
}

// ComputeUserMetrics summarises the expenses of one user against the user's
// stored monthly income. userExpenses must already be filtered to the user.
func ComputeUserMetrics(user core.User, userExpenses []core.Expense) UserMetrics {
	total := decimal.Zero
	byCat := make(map[core.Category]decimal.Decimal)
	var order []core.Category
	for _, e := range userExpenses {
		total = total.Add(e.Amount)
		if _, seen := byCat[e.Category]; !seen {
			order = append(order, e.Category)
		}
		byCat[e.Category] = byCat[e.Category].Add(e.Amount)
	}

	rows := make([]core.CategoryAmount, 0, len(order))
	for _, c := range order {
		rows = append(rows, core.CategoryAmount{Category: c, Amount: byCat[c]})
	}

	income := user.MonthlyIncome
	return UserMetrics{
		TotalExpenses: total,
		ByCategory:    rows,
		Income:        income,
		Savings:       income.Sub(total),
		ExpenseRatio:  percentOf(total, income),
	}
}

// ComputeCohortAverages averages each category's baseline amount over every
// user. An empty cohort yields ErrInsufficientData.
func ComputeCohortAverages(users []core.User, categories []core.Category) (CohortAverages, error) {
	if len(users) == 0 {
		return nil, ErrInsufficientData
	}
	n := decimal.NewFromInt(int64(len(users)))
	out := make(CohortAverages, len(categories))
	for _, c := range categories {
		sum := decimal.Zero
		for _, u := range users {
			sum = sum.Add(u.Amount(c))
		}
		out[c] = sum.Div(n)
	}
	return out, nil
}

// ComputeComparison lines up the user's baseline against the cohort
// averages, one row per category in the given order.
func ComputeComparison(user core.User, averages CohortAverages, categories []core.Category) []Comparison {
	out := make([]Comparison, 0, len(categories))
	for _, c := range categories {
		userAmt := user.Amount(c)
		avg := averages[c]
		diff := 0.0
		if avg.IsPositive() {
			diff = userAmt.Sub(avg).Div(avg).Mul(hundred).InexactFloat64()
		}
		out = append(out, Comparison{
			Category:          c,
			UserAmount:        userAmt,
			Average:           avg,
			PercentDifference: diff,
		})
	}
	return out
}

// percentOf returns part/whole*100, or 0 when whole is not positive.
func percentOf(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}
