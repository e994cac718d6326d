// Package advisor produces rule-based budgeting tips from a user's baseline
// amounts and income.
package advisor

import (
	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

// Topic groups related tips.
type Topic string

const (
	Housing        Topic = "Housing"
	Food           Topic = "Food"
	Transportation Topic = "Transportation"
	Entertainment  Topic = "Entertainment"
	Savings        Topic = "Savings"
)

// Thresholds, as fractions.
var (
	HousingLimit       = decimal.RequireFromString("0.40")
	FoodLimit          = decimal.RequireFromString("0.15")
	DiningShareLimit   = decimal.RequireFromString("0.50")
	TransportLimit     = decimal.RequireFromString("0.10")
	EntertainmentLimit = decimal.RequireFromString("0.10")
	SavingsFloor       = decimal.RequireFromString("0.10")
)

const (
	TipHousing       = "Your housing costs exceed 40% of your income. Consider finding roommates or cheaper accommodation."
	TipMealPlanning  = "Your food expenses are higher than recommended. Try meal planning to reduce costs."
	TipCookAtHome    = "You're spending more on takeaways/dining than groceries. Cook at home more often to save money."
	TipTransport     = "Your transportation costs are high. Look into student discount passes or carpooling."
	TipEntertainment = "Your entertainment spending is high. Look for free campus events and student discounts."
	TipSavings       = "You're saving less than 10% of your income. Try to increase this to build an emergency fund."
)

// Tips maps a topic to its tips. A topic is absent when its driving amount
// is zero; it may be present with no tips when nothing fired.
type Tips map[Topic][]string

var topicOrder = []Topic{Housing, Food, Transportation, Entertainment, Savings}

// Topics returns the present topics in display order.
func (t Tips) Topics() []Topic {
	var out []Topic
	for _, topic := range topicOrder {
		if _, ok := t[topic]; ok {
			out = append(out, topic)
		}
	}
	return out
}

// Count returns the total number of tips across topics.
func (t Tips) Count() int {
	n := 0
	for _, tips := range t {
		n += len(tips)
	}
	return n
}

// GenerateTips evaluates every rule independently. Ratios against a zero
// income are treated as 0. The savings rule uses the ledger total.
func GenerateTips(user core.User, userExpenses []core.Expense) Tips {
	tips := Tips{}
	income := user.MonthlyIncome

	if housing := user.Amount(core.Accommodation); housing.IsPositive() {
		tips[Housing] = []string{}
		if ratio(housing, income).GreaterThan(HousingLimit) {
			tips[Housing] = append(tips[Housing], TipHousing)
		}
	}

	grocery := user.Amount(core.Groceries)
	dining := user.Amount(core.Dining)
	if food := grocery.Add(dining); food.IsPositive() {
		tips[Food] = []string{}
		if ratio(food, income).GreaterThan(FoodLimit) {
			tips[Food] = append(tips[Food], TipMealPlanning)
		}
		if ratio(dining, food).GreaterThan(DiningShareLimit) {
			tips[Food] = append(tips[Food], TipCookAtHome)
		}
	}

	if transport := user.Amount(core.Transportation); transport.IsPositive() {
		tips[Transportation] = []string{}
		if ratio(transport, income).GreaterThan(TransportLimit) {
			tips[Transportation] = append(tips[Transportation], TipTransport)
		}
	}

	if fun := user.Amount(core.Entertainment); fun.IsPositive() {
		tips[Entertainment] = []string{}
		if ratio(fun, income).GreaterThan(EntertainmentLimit) {
			tips[Entertainment] = append(tips[Entertainment], TipEntertainment)
		}
	}

	if income.IsPositive() {
		tips[Savings] = []string{}
		rate := income.Sub(core.Sum(userExpenses)).Div(income)
		if rate.LessThan(SavingsFloor) {
			tips[Savings] = append(tips[Savings], TipSavings)
		}
	}

	return tips
}

func ratio(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole)
}
