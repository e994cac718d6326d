package store

import "studentbudget/internal/core"

var sqlColumns = map[core.Category]string{
	core.Accommodation:  "student_accommodation",
	core.Utilities:      "utilities",
	core.Groceries:      "grocery_shopping",
	core.Dining:         "takeaways_dining",
	core.Transportation: "public_transportation",
	core.Tuition:        "tuition_fees",
	core.Books:          "books_and_supplies",
	core.Clothing:       "clothing",
	core.Entertainment:  "entertainment",
	core.Health:         "health_medical_expenses",
}

// SQLColumn returns the users table column holding cat, or "" for a
// free-text category.
func SQLColumn(cat core.Category) string {
	return sqlColumns[cat]
}

// SQLBaselineColumns lists the baseline columns in category order.
func SQLBaselineColumns() []string {
	out := make([]string, 0, len(sqlColumns))
	for _, c := range core.Categories() {
		out = append(out, sqlColumns[c])
	}
	return out
}
