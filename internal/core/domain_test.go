package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDateParseAndString(t *testing.T) {
	d, err := ParseDate("2025-05-15")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2025-05-15" {
		t.Fatalf("unexpected round trip: %s", d)
	}
	if _, err := ParseDate("15/05/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if (Date{}).String() != "" {
		t.Fatalf("zero date should format empty")
	}
}

func TestUserValidate(t *testing.T) {
	good := User{
		Name:          "alice",
		Password:      "pw",
		Age:           20,
		Gender:        Female,
		Baseline:      map[Category]decimal.Decimal{Accommodation: dec("500")},
		MonthlyIncome: dec("1000"),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(u *User)
		want error
	}{
		{"empty name", func(u *User) { u.Name = "  " }, ErrEmptyName},
		{"too young", func(u *User) { u.Age = 15 }, ErrInvalidAge},
		{"too old", func(u *User) { u.Age = 101 }, ErrInvalidAge},
		{"bad gender", func(u *User) { u.Gender = "x" }, ErrInvalidGender},
		{"negative baseline", func(u *User) { u.Baseline[Utilities] = dec("-1") }, ErrNegativeAmount},
		{"negative income", func(u *User) { u.MonthlyIncome = dec("-5") }, ErrNegativeAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := good.Clone()
			tc.mut(&u)
			if err := u.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCloneDoesNotShareBaseline(t *testing.T) {
	u := User{Name: "a", Baseline: map[Category]decimal.Decimal{Clothing: dec("10")}}
	c := u.Clone()
	c.Baseline[Clothing] = dec("99")
	if !u.Amount(Clothing).Equal(dec("10")) {
		t.Fatalf("clone mutated original baseline")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{Username: "alice", Category: Groceries, Amount: dec("0.01"), Date: NewDate(2025, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Username: "", Category: Groceries, Amount: dec("1"), Date: NewDate(2025, 1, 1)},
		{Username: "a", Category: " ", Amount: dec("1"), Date: NewDate(2025, 1, 1)},
		{Username: "a", Category: Groceries, Amount: dec("0"), Date: NewDate(2025, 1, 1)},
		{Username: "a", Category: Groceries, Amount: dec("-3"), Date: NewDate(2025, 1, 1)},
		{Username: "a", Category: Groceries, Amount: dec("1")},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestSeedExpensesSkipsZeroCategories(t *testing.T) {
	u := User{
		Name: "bob",
		Baseline: map[Category]decimal.Decimal{
			Health:        dec("15"),
			Accommodation: dec("400"),
			Utilities:     dec("0"),
		},
	}
	on := NewDate(2025, 5, 15)
	seed := SeedExpenses(u, on)
	if len(seed) != 2 {
		t.Fatalf("expected 2 seed rows, got %d", len(seed))
	}
	if seed[0].Category != Accommodation || seed[1].Category != Health {
		t.Fatalf("seed rows not in category order: %v", seed)
	}
	for _, e := range seed {
		if e.Username != "bob" || e.Date != on {
			t.Fatalf("unexpected seed row: %+v", e)
		}
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	if len(cats) != 10 {
		t.Fatalf("expected 10 categories, got %d", len(cats))
	}
	cats[0] = "mutated"
	if Categories()[0] != Accommodation {
		t.Fatalf("Categories must return a copy")
	}
	if !Dining.IsBaseline() || Category("Coffee").IsBaseline() {
		t.Fatalf("IsBaseline mismatch")
	}
	if Category(" Coffee ").Label() != "Coffee" || Dining.Label() != "Takeaways/Dining" {
		t.Fatalf("Label mismatch")
	}
	if len(UsersHeader) != 15 || UsersHeader[4] != string(Accommodation) || UsersHeader[14] != "Monthly_Income" {
		t.Fatalf("unexpected users header: %v", UsersHeader)
	}
}
