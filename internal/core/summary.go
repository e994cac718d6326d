package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category Category
	Amount   decimal.Decimal
}

// Persisted column layouts, in order.
var (
	UsersHeader = []string{
		"Name", "Password", "Age", "Gender",
		string(Accommodation), string(Utilities), string(Groceries), string(Dining),
		string(Transportation), string(Tuition), string(Books), string(Clothing),
		string(Entertainment), string(Health),
		"Monthly_Income",
	}

	ExpensesHeader = []string{"Username", "Category", "Amount", "Date", "Note"}
)
