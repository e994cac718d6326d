package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/store"
	"studentbudget/internal/store/csvfile"
)

type Store struct {
	mu       sync.Mutex
	users    []core.User
	expenses []core.Expense
}

// New returns a store holding copies of the given records.
func New(users []core.User, expenses []core.Expense) *Store {
	s := &Store{expenses: append([]core.Expense(nil), expenses...)}
	for _, u := range users {
		s.users = append(s.users, u.Clone())
	}
	return s
}

// NewFromFiles seeds the store from users.csv and expenses.csv in base.
// Missing files give an empty store; later writes stay in memory.
func NewFromFiles(ctx context.Context, base string) (*Store, error) {
	src, err := csvfile.Open(base, nil)
	if err != nil {
		return nil, err
	}
	users, err := src.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	es, err := src.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}
	return New(users, es), nil
}

func (s *Store) Close() error { return nil }

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	return out, nil
}

func (s *Store) GetUser(_ context.Context, name string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := store.FindUser(s.users, name); ok {
		return u.Clone(), nil
	}
	return core.User{}, core.ErrUserNotFound
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense{}, s.expenses...), nil
}

func (s *Store) ListUserExpenses(_ context.Context, name string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.FilterByUser(s.expenses, name), nil
}

func (s *Store) CreateUser(_ context.Context, u core.User, seed []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := store.FindUser(s.users, u.Name); ok {
		return core.ErrUserExists
	}
	s.users = append(s.users, u.Clone())
	s.expenses = append(s.expenses, seed...)
	return nil
}

func (s *Store) AdjustBaseline(_ context.Context, name string, cat core.Category, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.Name != name {
			continue
		}
		adjusted, err := store.ApplyDelta(u, cat, delta)
		if err != nil {
			return err
		}
		s.users[i] = adjusted
		return nil
	}
	return core.ErrUserNotFound
}

// AppendExpense stores the expense and returns a synthetic row reference.
func (s *Store) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return fmt.Sprintf("mem:%d", len(s.expenses)), nil
}
