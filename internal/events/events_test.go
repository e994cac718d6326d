package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

func alice() core.User {
	return core.User{
		Name:     "alice",
		Password: "1234",
		Age:      20,
		Gender:   core.Female,
		Baseline: map[core.Category]decimal.Decimal{
			core.Accommodation: decimal.NewFromInt(500),
			core.Groceries:     decimal.NewFromInt(50),
		},
		MonthlyIncome: decimal.NewFromInt(1000),
	}
}

func TestUserRegisteredRoundTrip(t *testing.T) {
	u := alice()
	seed := core.SeedExpenses(u, core.NewDate(2025, 5, 15))
	ev := NewUserRegistered(u, seed)

	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Fatalf("id %q is not a uuid: %v", ev.ID, err)
	}
	if ev.Username != "alice" || ev.OccurredAt.IsZero() {
		t.Fatalf("unexpected envelope: %+v", ev)
	}

	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := FromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	got, gotSeed, err := parsed.RegisteredUser()
	if err != nil {
		t.Fatalf("RegisteredUser() error = %v", err)
	}
	if got.Name != "alice" || got.Password != "1234" || !got.Amount(core.Accommodation).Equal(decimal.NewFromInt(500)) {
		t.Errorf("unexpected user: %+v", got)
	}
	if len(gotSeed) != 2 || gotSeed[0].Category != core.Accommodation || gotSeed[1].Date.String() != "2025-05-15" {
		t.Errorf("unexpected seed: %+v", gotSeed)
	}
}

func TestExpenseRecordedAndAdjustment(t *testing.T) {
	e := core.Expense{Username: "bob", Category: "Coffee", Amount: decimal.RequireFromString("3.5"), Date: core.NewDate(2025, 6, 1), Note: "flat white"}
	got, err := NewExpenseRecorded(e, "expenses.csv:4").RecordedExpense()
	if err != nil {
		t.Fatalf("RecordedExpense() error = %v", err)
	}
	if got.Note != "flat white" || !got.Amount.Equal(e.Amount) || got.Category != "Coffee" {
		t.Errorf("unexpected expense: %+v", got)
	}

	cat, delta, err := NewBaselineAdjusted("bob", core.Groceries, decimal.NewFromInt(25)).Adjustment()
	if err != nil || cat != core.Groceries || !delta.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Adjustment() = %v, %v, %v", cat, delta, err)
	}
}

func TestDecodeWrongType(t *testing.T) {
	ev := NewBaselineAdjusted("bob", core.Groceries, decimal.NewFromInt(1))
	if _, err := ev.RecordedExpense(); err == nil {
		t.Error("RecordedExpense() on baseline event should fail")
	}
	if _, _, err := ev.RegisteredUser(); err == nil {
		t.Error("RegisteredUser() on baseline event should fail")
	}
}

func TestFromJSONRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"not json":     `{"id":`,
		"unknown type": `{"id":"x","type":"user.deleted"}`,
		"missing id":   `{"type":"expense.recorded"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := FromJSON([]byte(body)); err == nil {
				t.Errorf("FromJSON(%s) should fail", body)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), NewBaselineAdjusted("a", core.Books, decimal.NewFromInt(1)))
	evs := r.Events()
	if len(evs) != 1 || evs[0].Type != BaselineAdjusted {
		t.Fatalf("Events() = %+v", evs)
	}
	evs[0].Type = "mutated"
	if r.Events()[0].Type != BaselineAdjusted {
		t.Error("Events() should return a copy")
	}
}
