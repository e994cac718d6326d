// Package storetest runs the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/store"
)

// Factory returns a fresh, empty store. Reopen, when not nil, returns a new
// handle on the same underlying data so persistence can be checked.
type Factory struct {
	New    func(t *testing.T) store.Store
	Reopen func(t *testing.T, s store.Store) store.Store
}

// Alice is the user most cases register.
func Alice() core.User {
	return core.User{
		Name: "alice", Password: "1234", Age: 20, Gender: core.Female,
		Baseline: map[core.Category]decimal.Decimal{
			core.Accommodation: decimal.NewFromInt(500),
			core.Groceries:     decimal.NewFromInt(50),
			core.Dining:        decimal.NewFromInt(60),
		},
		MonthlyIncome: decimal.NewFromInt(1000),
	}
}

// Run executes the shared cases as subtests.
func Run(t *testing.T, f Factory) {
	t.Run("EmptyStore", func(t *testing.T) { testEmpty(t, f) })
	t.Run("CreateUserWithSeed", func(t *testing.T) { testCreate(t, f) })
	t.Run("DuplicateWritesNothing", func(t *testing.T) { testDuplicate(t, f) })
	t.Run("AppendAndAdjust", func(t *testing.T) { testAppendAdjust(t, f) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrent(t, f) })
	if f.Reopen != nil {
		t.Run("Persistence", func(t *testing.T) { testPersistence(t, f) })
	}
}

func seed(u core.User) []core.Expense {
	return core.SeedExpenses(u, core.NewDate(2025, 5, 15))
}

func testEmpty(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.New(t)
	defer s.Close()

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 0 {
		t.Fatalf("ListUsers = %v, %v; want empty", users, err)
	}
	es, err := s.ListExpenses(ctx)
	if err != nil || len(es) != 0 {
		t.Fatalf("ListExpenses = %v, %v; want empty", es, err)
	}
	if _, err := s.GetUser(ctx, "nobody"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("GetUser on empty store: %v", err)
	}
}

func testCreate(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.New(t)
	defer s.Close()

	a := Alice()
	if err := s.CreateUser(ctx, a, seed(a)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Password != "1234" || got.Age != 20 || got.Gender != core.Female {
		t.Fatalf("unexpected user: %+v", got)
	}
	if !got.Amount(core.Accommodation).Equal(decimal.NewFromInt(500)) || !got.MonthlyIncome.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("amounts not stored: %+v", got)
	}
	es, err := s.ListUserExpenses(ctx, "alice")
	if err != nil {
		t.Fatalf("ListUserExpenses: %v", err)
	}
	if len(es) != 3 {
		t.Fatalf("seed rows = %d, want 3", len(es))
	}
	if es[0].Category != core.Accommodation || es[1].Category != core.Groceries || es[2].Category != core.Dining {
		t.Fatalf("seed rows out of order: %+v", es)
	}
	if es[0].Date.String() != "2025-05-15" {
		t.Fatalf("seed date = %q", es[0].Date.String())
	}
}

func testDuplicate(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.New(t)
	defer s.Close()

	a := Alice()
	if err := s.CreateUser(ctx, a, seed(a)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	dup := Alice()
	dup.Password = "other"
	dup.Baseline[core.Books] = decimal.NewFromInt(99)
	if err := s.CreateUser(ctx, dup, seed(dup)); !errors.Is(err, core.ErrUserExists) {
		t.Fatalf("duplicate CreateUser: got %v, want ErrUserExists", err)
	}
	users, _ := s.ListUsers(ctx)
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1", len(users))
	}
	es, _ := s.ListExpenses(ctx)
	if len(es) != 3 {
		t.Fatalf("ledger rows = %d, want 3", len(es))
	}
}

func testAppendAdjust(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.New(t)
	defer s.Close()

	a := Alice()
	if err := s.CreateUser(ctx, a, nil); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	e := core.Expense{Username: "alice", Category: "Coffee", Amount: decimal.RequireFromString("3.5"), Date: core.NewDate(2025, 5, 16), Note: "flat white"}
	ref, err := s.AppendExpense(ctx, e)
	if err != nil {
		t.Fatalf("AppendExpense: %v", err)
	}
	if ref == "" {
		t.Fatalf("empty ref")
	}
	if err := s.AdjustBaseline(ctx, "alice", core.Groceries, decimal.NewFromInt(25)); err != nil {
		t.Fatalf("AdjustBaseline: %v", err)
	}
	got, _ := s.GetUser(ctx, "alice")
	if !got.Amount(core.Groceries).Equal(decimal.NewFromInt(75)) {
		t.Fatalf("groceries = %s, want 75", got.Amount(core.Groceries))
	}
	if err := s.AdjustBaseline(ctx, "ghost", core.Groceries, decimal.NewFromInt(1)); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("adjust unknown user: %v", err)
	}
	if err := s.AdjustBaseline(ctx, "alice", "Coffee", decimal.NewFromInt(1)); !errors.Is(err, store.ErrNotBaseline) {
		t.Fatalf("adjust free-text category: %v", err)
	}

	es, _ := s.ListUserExpenses(ctx, "alice")
	if len(es) != 1 || es[0].Note != "flat white" || !es[0].Amount.Equal(e.Amount) {
		t.Fatalf("unexpected ledger: %+v", es)
	}
	if other, _ := s.ListUserExpenses(ctx, "bob"); len(other) != 0 {
		t.Fatalf("bob should have no rows: %+v", other)
	}
}

func testConcurrent(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.New(t)
	defer s.Close()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendExpense(ctx, core.Expense{
				Username: "u", Category: core.Category(fmt.Sprintf("c%d", i)),
				Amount: decimal.NewFromInt(1), Date: core.NewDate(2025, 1, 1),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AppendExpense: %v", err)
		}
	}
	es, _ := s.ListExpenses(ctx)
	if len(es) != n {
		t.Fatalf("ledger rows = %d, want %d", len(es), n)
	}
}

func testPersistence(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.New(t)
	a := Alice()
	if err := s.CreateUser(ctx, a, seed(a)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	s = f.Reopen(t, s)
	defer s.Close()

	got, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser after reopen: %v", err)
	}
	if !got.Amount(core.Dining).Equal(decimal.NewFromInt(60)) {
		t.Fatalf("dining after reopen = %s", got.Amount(core.Dining))
	}
	es, _ := s.ListExpenses(ctx)
	if len(es) != 3 {
		t.Fatalf("ledger rows after reopen = %d", len(es))
	}
}
