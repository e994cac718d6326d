package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

// Columns maps a header name to its position in a row.
type Columns map[string]int

// IndexHeader builds Columns from a header row and checks that every
// required column is there.
func IndexHeader(header []string, required ...string) (Columns, error) {
	cols := make(Columns, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, r := range required {
		if _, ok := cols[r]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, r)
		}
	}
	return cols, nil
}

// Get returns the named cell of row, or "" when absent.
func (c Columns) Get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// UserRecord encodes u in the users column order.
func UserRecord(u core.User) []string {
	row := make([]string, 0, len(core.UsersHeader))
	row = append(row, u.Name, u.Password, strconv.Itoa(u.Age), string(u.Gender))
	for _, cat := range core.Categories() {
		row = append(row, u.Amount(cat).String())
	}
	return append(row, u.MonthlyIncome.String())
}

// ParseUser decodes one users row. Empty amounts read as zero.
func ParseUser(cols Columns, row []string) (core.User, error) {
	u := core.User{
		Name:     cols.Get(row, "Name"),
		Password: cols.Get(row, "Password"),
		Gender:   core.Gender(strings.TrimSpace(cols.Get(row, "Gender"))),
		Baseline: make(map[core.Category]decimal.Decimal, 10),
	}
	if u.Name == "" {
		return core.User{}, fmt.Errorf("%w: empty name", ErrMalformed)
	}
	age, err := parseNumber(cols.Get(row, "Age"))
	if err != nil {
		return core.User{}, fmt.Errorf("%w: age of %q: %v", ErrMalformed, u.Name, err)
	}
	u.Age = int(age.IntPart())
	for _, cat := range core.Categories() {
		amt, err := parseNumber(cols.Get(row, string(cat)))
		if err != nil {
			return core.User{}, fmt.Errorf("%w: %s of %q: %v", ErrMalformed, cat, u.Name, err)
		}
		u.Baseline[cat] = amt
	}
	if u.MonthlyIncome, err = parseNumber(cols.Get(row, "Monthly_Income")); err != nil {
		return core.User{}, fmt.Errorf("%w: income of %q: %v", ErrMalformed, u.Name, err)
	}
	return u, nil
}

// ExpenseRecord encodes e in the expenses column order.
func ExpenseRecord(e core.Expense) []string {
	return []string{e.Username, string(e.Category), e.Amount.String(), e.Date.String(), e.Note}
}

// ParseExpense decodes one ledger row. An unreadable date is kept as the
// zero date; an unreadable amount rejects the row.
func ParseExpense(cols Columns, row []string) (core.Expense, error) {
	e := core.Expense{
		Username: cols.Get(row, "Username"),
		Category: core.Category(cols.Get(row, "Category")),
		Note:     cols.Get(row, "Note"),
	}
	amt, err := parseNumber(cols.Get(row, "Amount"))
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: amount: %v", ErrMalformed, err)
	}
	e.Amount = amt
	if d, err := core.ParseDate(dateOnly(cols.Get(row, "Date"))); err == nil {
		e.Date = d
	}
	return e, nil
}

// dateOnly drops a time suffix such as "2025-05-15 00:00:00".
func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		return s[:i]
	}
	return s
}

func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Cell normalizes a typed spreadsheet value to its text form. Integral
// floats lose their fraction so that numeric passwords read back as typed.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}

// Cells converts a row of typed values with Cell.
func Cells(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = Cell(v)
	}
	return out
}
