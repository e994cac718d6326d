package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Male   Gender = "Male"
	Female Gender = "Female"
	Other  Gender = "Other"
)

const (
	MinAge = 16
	MaxAge = 100
)

type (
	Gender string

	Date struct {
		time.Time
	}

	// User is one registered student. Baseline holds the recurring monthly
	// amount per fixed category as entered at registration.
	User struct {
		Name          string
		Password      string
		Age           int
		Gender        Gender
		Baseline      map[Category]decimal.Decimal
		MonthlyIncome decimal.Decimal
	}

	// Expense is one ledger row. Category is free text; it is not required
	// to be one of the baseline categories.
	Expense struct {
		Username string
		Category Category
		Amount   decimal.Decimal
		Date     Date
		Note     string
	}
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidAge         = errors.New("invalid age")
	ErrInvalidGender      = errors.New("invalid gender")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyUsername      = errors.New("empty username")
	ErrInvalidDate        = errors.New("invalid date")
)

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, the persisted layout.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.TrimSpace(s)); g {
	case Male, Female, Other:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGender, s)
	}
}

// Genders lists the accepted genders in form order.
func Genders() []Gender {
	return []Gender{Male, Female, Other}
}

// Amount returns the baseline amount for cat, zero when unset.
func (u User) Amount(cat Category) decimal.Decimal {
	if u.Baseline == nil {
		return decimal.Zero
	}
	return u.Baseline[cat]
}

// Clone returns a copy with its own baseline map.
func (u User) Clone() User {
	c := u
	c.Baseline = make(map[Category]decimal.Decimal, len(u.Baseline))
	for k, v := range u.Baseline {
		c.Baseline[k] = v
	}
	return c
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if u.Age < MinAge || u.Age > MaxAge {
		return fmt.Errorf("%w: must be between %d and %d", ErrInvalidAge, MinAge, MaxAge)
	}
	if _, err := ParseGender(string(u.Gender)); err != nil {
		return err
	}
	for _, cat := range Categories() {
		if u.Amount(cat).IsNegative() {
			return fmt.Errorf("%w: %s", ErrNegativeAmount, cat)
		}
	}
	if u.MonthlyIncome.IsNegative() {
		return fmt.Errorf("%w: monthly income", ErrNegativeAmount)
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Username) == "" {
		return ErrEmptyUsername
	}
	if strings.TrimSpace(string(e.Category)) == "" {
		return ErrEmptyCategory
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(e.Note) > 500 {
		return errors.New("note too long (max 500 characters)")
	}
	return nil
}

// SeedExpenses returns the ledger rows written at registration: one per
// baseline category with a strictly positive amount, in category order.
func SeedExpenses(u User, on Date) []Expense {
	var out []Expense
	for _, cat := range Categories() {
		amt := u.Amount(cat)
		if !amt.IsPositive() {
			continue
		}
		out = append(out, Expense{
			Username: u.Name,
			Category: cat,
			Amount:   amt,
			Date:     on,
		})
	}
	return out
}
