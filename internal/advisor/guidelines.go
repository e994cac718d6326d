package advisor

// Guideline is a static block of general budgeting advice.
type Guideline struct {
	Title  string
	Points []string
}

// Guidelines returns the general advice shown above the personal tips.
func Guidelines() []Guideline {
	return []Guideline{
		{
			Title: "50/30/20 Rule",
			Points: []string{
				"50% of income for necessities (rent, groceries, utilities)",
				"30% for wants (dining out, entertainment)",
				"20% for savings and debt repayment",
			},
		},
		{
			Title: "Build an Emergency Fund",
			Points: []string{
				"Aim to save 3-6 months of essential expenses",
				"Start small if needed - even a little every week adds up",
			},
		},
		{
			Title: "Reduce Recurring Expenses",
			Points: []string{
				"Share subscriptions with roommates",
				"Look for student discounts",
			},
		},
	}
}
