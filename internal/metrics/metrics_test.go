package metrics

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func exp(cat core.Category, amount string) core.Expense {
	return core.Expense{Username: "alice", Category: cat, Amount: dec(amount), Date: core.NewDate(2025, 5, 15)}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeUserMetricsGroceryAndDining(t *testing.T) {
	user := core.User{Name: "alice", MonthlyIncome: dec("1000")}
	es := []core.Expense{exp(core.Groceries, "50"), exp(core.Dining, "60")}

	m := ComputeUserMetrics(user, es)
	if !m.TotalExpenses.Equal(dec("110")) {
		t.Fatalf("total = %s, want 110", m.TotalExpenses)
	}
	want := []core.CategoryAmount{
		{Category: core.Groceries, Amount: dec("50")},
		{Category: core.Dining, Amount: dec("60")},
	}
	if len(m.ByCategory) != len(want) {
		t.Fatalf("byCategory = %v", m.ByCategory)
	}
	for i := range want {
		if m.ByCategory[i].Category != want[i].Category || !m.ByCategory[i].Amount.Equal(want[i].Amount) {
			t.Fatalf("row %d = %+v, want %+v", i, m.ByCategory[i], want[i])
		}
	}
	if !m.Savings.Equal(dec("890")) {
		t.Fatalf("savings = %s", m.Savings)
	}
	if !approx(m.ExpenseRatio, 11) {
		t.Fatalf("ratio = %v, want 11", m.ExpenseRatio)
	}
}

func TestComputeUserMetricsEmptyLedger(t *testing.T) {
	tests := []struct {
		name   string
		income string
	}{
		{"zero income", "0"},
		{"positive income", "800"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ComputeUserMetrics(core.User{Name: "new", MonthlyIncome: dec(tt.income)}, nil)
			if !m.TotalExpenses.IsZero() {
				t.Errorf("total = %s", m.TotalExpenses)
			}
			if len(m.ByCategory) != 0 {
				t.Errorf("byCategory = %v", m.ByCategory)
			}
			if m.ExpenseRatio != 0 {
				t.Errorf("ratio = %v", m.ExpenseRatio)
			}
			if !m.Savings.Equal(dec(tt.income)) {
				t.Errorf("savings = %s", m.Savings)
			}
		})
	}
}

func TestComputeUserMetricsZeroIncomeWithExpenses(t *testing.T) {
	m := ComputeUserMetrics(core.User{Name: "a"}, []core.Expense{exp(core.Books, "30")})
	if m.ExpenseRatio != 0 {
		t.Fatalf("ratio with zero income = %v, want 0", m.ExpenseRatio)
	}
	if !m.Savings.Equal(dec("-30")) {
		t.Fatalf("savings = %s, want -30", m.Savings)
	}
}

func TestComputeUserMetricsTotalsAgree(t *testing.T) {
	user := core.User{Name: "alice", MonthlyIncome: dec("333.33")}
	es := []core.Expense{
		exp(core.Groceries, "0.1"),
		exp("Coffee", "0.2"),
		exp(core.Groceries, "0.7"),
		exp(core.Accommodation, "400.01"),
		exp("Coffee", "3.3"),
	}
	m := ComputeUserMetrics(user, es)

	sum := decimal.Zero
	for _, r := range m.ByCategory {
		sum = sum.Add(r.Amount)
	}
	if !sum.Equal(m.TotalExpenses) {
		t.Fatalf("sum(byCategory) = %s, total = %s", sum, m.TotalExpenses)
	}
	if !m.Savings.Equal(m.Income.Sub(m.TotalExpenses)) {
		t.Fatalf("savings = %s, want income - total", m.Savings)
	}
	if !m.Savings.IsNegative() {
		t.Fatalf("expected negative savings, got %s", m.Savings)
	}
	if m.ByCategory[0].Category != core.Groceries || m.ByCategory[1].Category != "Coffee" {
		t.Fatalf("categories not in first appearance order: %v", m.ByCategory)
	}

	again := ComputeUserMetrics(user, es)
	if !reflect.DeepEqual(m, again) {
		t.Fatalf("second call differs: %+v vs %+v", m, again)
	}
}

func TestGroupByUser(t *testing.T) {
	es := []core.Expense{
		{Username: "a", Category: core.Books, Amount: dec("1")},
		{Username: "b", Category: core.Books, Amount: dec("2")},
		{Username: "a", Category: core.Health, Amount: dec("3")},
	}
	g := GroupByUser(es)
	if len(g["a"]) != 2 || len(g["b"]) != 1 || len(g["c"]) != 0 {
		t.Fatalf("unexpected grouping: %v", g)
	}
	if g["a"][1].Category != core.Health {
		t.Fatalf("ledger order not kept: %v", g["a"])
	}
}

func TestComputeCohortAverages(t *testing.T) {
	cats := core.Categories()
	if _, err := ComputeCohortAverages(nil, cats); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}

	solo := core.User{Name: "solo", Baseline: map[core.Category]decimal.Decimal{
		core.Accommodation: dec("420.5"),
		core.Clothing:      dec("33"),
	}}
	avg, err := ComputeCohortAverages([]core.User{solo}, cats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range cats {
		if !avg[c].Equal(solo.Amount(c)) {
			t.Fatalf("single-user average for %s = %s, want %s", c, avg[c], solo.Amount(c))
		}
	}

	other := core.User{Name: "other", Baseline: map[core.Category]decimal.Decimal{core.Accommodation: dec("579.5")}}
	avg, _ = ComputeCohortAverages([]core.User{solo, other}, cats)
	if !avg[core.Accommodation].Equal(dec("500")) {
		t.Fatalf("average accommodation = %s, want 500", avg[core.Accommodation])
	}
	if !avg[core.Clothing].Equal(dec("16.5")) {
		t.Fatalf("average clothing = %s, want 16.5", avg[core.Clothing])
	}
}

func TestComputeComparison(t *testing.T) {
	user := core.User{Name: "a", Baseline: map[core.Category]decimal.Decimal{
		core.Accommodation: dec("600"),
		core.Utilities:     dec("50"),
	}}
	averages := CohortAverages{
		core.Accommodation: dec("500"),
		core.Utilities:     dec("0"),
	}
	rows := ComputeComparison(user, averages, []core.Category{core.Accommodation, core.Utilities, core.Books})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if !approx(rows[0].PercentDifference, 20) {
		t.Errorf("accommodation diff = %v, want 20", rows[0].PercentDifference)
	}
	if rows[1].PercentDifference != 0 {
		t.Errorf("zero-average diff = %v, want 0", rows[1].PercentDifference)
	}
	if rows[2].PercentDifference != 0 || !rows[2].UserAmount.IsZero() {
		t.Errorf("missing category row = %+v", rows[2])
	}
}

func TestCategorySharesAndBars(t *testing.T) {
	rows := []core.CategoryAmount{
		{Category: core.Groceries, Amount: dec("50")},
		{Category: core.Dining, Amount: dec("150")},
		{Category: core.Books, Amount: dec("1")},
	}
	shares := CategoryShares(rows)
	total := 0.0
	for _, s := range shares {
		total += s.Percent
	}
	if !approx(total, 100) {
		t.Fatalf("shares sum to %v", total)
	}
	if !approx(shares[1].Percent, 150.0/201.0*100) {
		t.Fatalf("dining share = %v", shares[1].Percent)
	}

	bars := BarWidths(rows)
	if bars[1].Width != 100 || bars[0].Width != 33 || bars[2].Width != 2 {
		t.Fatalf("unexpected widths: %+v", bars)
	}
	if len(CategoryShares(nil)) != 0 || len(BarWidths(nil)) != 0 {
		t.Fatalf("empty input should give empty output")
	}
}
