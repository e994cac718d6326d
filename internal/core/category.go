package core

import "strings"

// Category names a spending bucket. The ten baseline categories double as
// column names in the users file.
type Category string

const (
	Accommodation  Category = "Student_Accommodation"
	Utilities      Category = "Utilities"
	Groceries      Category = "Grocery_shopping"
	Dining         Category = "Takeaways/dining"
	Transportation Category = "Public_Transportation"
	Tuition        Category = "Tuition_Fees"
	Books          Category = "Books_and_Supplies"
	Clothing       Category = "Clothing"
	Entertainment  Category = "Entertainment"
	Health         Category = "Health/Medical_Expenses"
)

var baselineCategories = []Category{
	Accommodation,
	Utilities,
	Groceries,
	Dining,
	Transportation,
	Tuition,
	Books,
	Clothing,
	Entertainment,
	Health,
}

var categoryLabels = map[Category]string{
	Accommodation:  "Student Accommodation",
	Utilities:      "Utilities",
	Groceries:      "Grocery Shopping",
	Dining:         "Takeaways/Dining",
	Transportation: "Public Transportation",
	Tuition:        "Tuition Fees",
	Books:          "Books and Supplies",
	Clothing:       "Clothing",
	Entertainment:  "Entertainment",
	Health:         "Health/Medical Expenses",
}

// Categories returns the fixed baseline categories in column order.
func Categories() []Category {
	return append([]Category(nil), baselineCategories...)
}

// IsBaseline reports whether c is one of the ten fixed categories.
func (c Category) IsBaseline() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns a human readable name; free-text categories are returned as is.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return strings.TrimSpace(string(c))
}

func (c Category) String() string {
	return string(c)
}
