package advisor

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func user(income string, baseline map[core.Category]string) core.User {
	u := core.User{Name: "alice", MonthlyIncome: dec(income), Baseline: map[core.Category]decimal.Decimal{}}
	for c, v := range baseline {
		u.Baseline[c] = dec(v)
	}
	return u
}

func TestHousingThreshold(t *testing.T) {
	tests := []struct {
		name          string
		accommodation string
		want          []string
	}{
		{"half of income fires", "500", []string{TipHousing}},
		{"thirty percent stays quiet", "300", []string{}},
		{"exactly forty percent stays quiet", "400", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := GenerateTips(user("1000", map[core.Category]string{core.Accommodation: tt.accommodation}), nil)
			got, ok := tips[Housing]
			if !ok {
				t.Fatalf("housing topic missing")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("housing tips = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFoodRules(t *testing.T) {
	u := user("1000", map[core.Category]string{core.Groceries: "50", core.Dining: "60"})
	tips := GenerateTips(u, nil)
	// food ratio 0.11 (no meal planning), dining share 60/110 > 0.5
	if !reflect.DeepEqual(tips[Food], []string{TipCookAtHome}) {
		t.Fatalf("food tips = %v", tips[Food])
	}

	u = user("500", map[core.Category]string{core.Groceries: "50", core.Dining: "60"})
	tips = GenerateTips(u, nil)
	if !reflect.DeepEqual(tips[Food], []string{TipMealPlanning, TipCookAtHome}) {
		t.Fatalf("food tips = %v", tips[Food])
	}

	u = user("1000", map[core.Category]string{core.Groceries: "100", core.Dining: "20"})
	tips = GenerateTips(u, nil)
	if len(tips[Food]) != 0 {
		t.Fatalf("expected no food tips, got %v", tips[Food])
	}
}

func TestZeroIncomeNeverFiresIncomeRatios(t *testing.T) {
	u := user("0", map[core.Category]string{
		core.Accommodation:  "900",
		core.Transportation: "200",
		core.Entertainment:  "300",
		core.Groceries:      "10",
	})
	tips := GenerateTips(u, []core.Expense{{Username: "alice", Category: core.Groceries, Amount: dec("10")}})
	for _, topic := range []Topic{Housing, Transportation, Entertainment, Food} {
		if got, ok := tips[topic]; !ok || len(got) != 0 {
			t.Fatalf("%s: expected present and empty, got %v (present=%v)", topic, got, ok)
		}
	}
	if _, ok := tips[Savings]; ok {
		t.Fatalf("savings topic must be absent with zero income")
	}
}

func TestTopicsAbsentForZeroAmounts(t *testing.T) {
	tips := GenerateTips(user("1000", nil), nil)
	if got := tips.Topics(); !reflect.DeepEqual(got, []Topic{Savings}) {
		t.Fatalf("topics = %v, want [Savings]", got)
	}
	if len(tips[Savings]) != 0 {
		t.Fatalf("full savings should not fire: %v", tips[Savings])
	}
}

func TestSavingsUsesLedgerTotal(t *testing.T) {
	u := user("1000", map[core.Category]string{core.Transportation: "150", core.Entertainment: "101"})
	es := []core.Expense{
		{Username: "alice", Category: core.Transportation, Amount: dec("150")},
		{Username: "alice", Category: "Laptop", Amount: dec("760")},
	}
	tips := GenerateTips(u, es)
	if !reflect.DeepEqual(tips[Savings], []string{TipSavings}) {
		t.Fatalf("savings tips = %v", tips[Savings])
	}
	if !reflect.DeepEqual(tips[Transportation], []string{TipTransport}) {
		t.Fatalf("transport tips = %v", tips[Transportation])
	}
	if !reflect.DeepEqual(tips[Entertainment], []string{TipEntertainment}) {
		t.Fatalf("entertainment tips = %v", tips[Entertainment])
	}
	if tips.Count() != 3 {
		t.Fatalf("count = %d, want 3", tips.Count())
	}
	want := []Topic{Transportation, Entertainment, Savings}
	if !reflect.DeepEqual(tips.Topics(), want) {
		t.Fatalf("topics = %v, want %v", tips.Topics(), want)
	}
}

func TestGuidelines(t *testing.T) {
	g := Guidelines()
	if len(g) != 3 || g[0].Title != "50/30/20 Rule" {
		t.Fatalf("unexpected guidelines: %+v", g)
	}
}
