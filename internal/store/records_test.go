package store

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

func TestUserRoundTrip(t *testing.T) {
	u := core.User{
		Name: "alice", Password: "1234", Age: 20, Gender: core.Female,
		Baseline: map[core.Category]decimal.Decimal{
			core.Accommodation: decimal.RequireFromString("500"),
			core.Dining:        decimal.RequireFromString("12.5"),
		},
		MonthlyIncome: decimal.RequireFromString("1000"),
	}
	cols, err := IndexHeader(core.UsersHeader, "Name")
	if err != nil {
		t.Fatal(err)
	}
	row := UserRecord(u)
	if len(row) != len(core.UsersHeader) {
		t.Fatalf("row has %d columns, want %d", len(row), len(core.UsersHeader))
	}
	got, err := ParseUser(cols, row)
	if err != nil {
		t.Fatalf("ParseUser: %v", err)
	}
	if got.Name != u.Name || got.Password != u.Password || got.Age != 20 || got.Gender != core.Female {
		t.Fatalf("identity fields differ: %+v", got)
	}
	for _, c := range core.Categories() {
		if !got.Amount(c).Equal(u.Amount(c)) {
			t.Errorf("%s = %s, want %s", c, got.Amount(c), u.Amount(c))
		}
	}
	if !got.MonthlyIncome.Equal(u.MonthlyIncome) {
		t.Errorf("income = %s", got.MonthlyIncome)
	}
}

func TestParseUserTolerance(t *testing.T) {
	header := []string{"\ufeffName", "Password", "Age", "Gender", "Monthly_Income", "Utilities"}
	cols, err := IndexHeader(header, "Name", "Password")
	if err != nil {
		t.Fatal(err)
	}
	u, err := ParseUser(cols, []string{"bob", "pw", "19.0", "Male", "", " 40 "})
	if err != nil {
		t.Fatalf("ParseUser: %v", err)
	}
	if u.Age != 19 || !u.MonthlyIncome.IsZero() || !u.Amount(core.Utilities).Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected user: %+v", u)
	}
	if !u.Amount(core.Health).IsZero() {
		t.Fatalf("missing column should read as zero")
	}

	if _, err := ParseUser(cols, []string{"bob", "pw", "old"}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := IndexHeader([]string{"Username"}, "Name"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestParseExpense(t *testing.T) {
	cols, _ := IndexHeader([]string{"Username", "Category", "Amount", "Date"})
	tests := []struct {
		name    string
		row     []string
		wantErr bool
		date    string
	}{
		{"plain", []string{"alice", "Coffee", "3.5", "2025-05-15"}, false, "2025-05-15"},
		{"timestamp date", []string{"alice", "Coffee", "3.5", "2025-05-15 00:00:00"}, false, "2025-05-15"},
		{"bad date kept", []string{"alice", "Coffee", "3.5", "yesterday"}, false, ""},
		{"bad amount", []string{"alice", "Coffee", "lots", "2025-05-15"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseExpense(cols, tt.row)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && e.Date.String() != tt.date {
				t.Fatalf("date = %q, want %q", e.Date.String(), tt.date)
			}
		})
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"1234", "1234"},
		{float64(1234), "1234"},
		{12.5, "12.5"},
		{int64(7), "7"},
		{true, "True"},
		{false, "False"},
	}
	for _, tt := range tests {
		if got := Cell(tt.in); got != tt.want {
			t.Errorf("Cell(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := Cells([]any{"a", 1.0}); !reflect.DeepEqual(got, []string{"a", "1"}) {
		t.Errorf("Cells = %v", got)
	}
}

func TestApplyDelta(t *testing.T) {
	u := core.User{Name: "a", Baseline: map[core.Category]decimal.Decimal{core.Books: decimal.NewFromInt(10)}}
	got, err := ApplyDelta(u, core.Books, decimal.NewFromInt(5))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Amount(core.Books).Equal(decimal.NewFromInt(15)) {
		t.Fatalf("books = %s", got.Amount(core.Books))
	}
	if !u.Amount(core.Books).Equal(decimal.NewFromInt(10)) {
		t.Fatalf("original mutated")
	}
	if _, err := ApplyDelta(u, "Coffee", decimal.NewFromInt(1)); !errors.Is(err, ErrNotBaseline) {
		t.Fatalf("expected ErrNotBaseline, got %v", err)
	}
}
