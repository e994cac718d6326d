// Package store defines the record store ports shared by every backend and
// the row layout used by the tabular ones.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
)

var (
	ErrNotBaseline = errors.New("category is not a baseline category")
	ErrMalformed   = errors.New("malformed row")
)

// Ports for outbound adapters.
type (
	UserReader interface {
		// ListUsers returns every user in storage order.
		ListUsers(ctx context.Context) ([]core.User, error)
		// GetUser returns the first user with an exactly matching name or
		// core.ErrUserNotFound.
		GetUser(ctx context.Context, name string) (core.User, error)
	}

	UserWriter interface {
		// CreateUser stores u and its seed ledger rows together. A duplicate
		// name yields core.ErrUserExists and nothing is written.
		CreateUser(ctx context.Context, u core.User, seed []core.Expense) error
		// AdjustBaseline adds delta to one of the user's baseline amounts.
		AdjustBaseline(ctx context.Context, name string, cat core.Category, delta decimal.Decimal) error
	}

	ExpenseLister interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		ListUserExpenses(ctx context.Context, name string) ([]core.Expense, error)
	}

	ExpenseWriter interface {
		AppendExpense(ctx context.Context, e core.Expense) (ref string, err error)
	}

	Store interface {
		UserReader
		UserWriter
		ExpenseLister
		ExpenseWriter
		Close() error
	}

	// Pinger is implemented by backends that can cheaply check reachability.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// FindUser returns the first user named name.
func FindUser(users []core.User, name string) (core.User, bool) {
	for _, u := range users {
		if u.Name == name {
			return u, true
		}
	}
	return core.User{}, false
}

// FilterByUser keeps the rows owned by name, in ledger order.
func FilterByUser(expenses []core.Expense, name string) []core.Expense {
	out := make([]core.Expense, 0)
	for _, e := range expenses {
		if e.Username == name {
			out = append(out, e)
		}
	}
	return out
}

// ApplyDelta returns a copy of u with delta added to cat.
func ApplyDelta(u core.User, cat core.Category, delta decimal.Decimal) (core.User, error) {
	if !cat.IsBaseline() {
		return u, ErrNotBaseline
	}
	c := u.Clone()
	c.Baseline[cat] = c.Amount(cat).Add(delta)
	return c, nil
}

// Ping checks reachability, using a listing for backends without Pinger.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	_, err := s.ListUsers(ctx)
	return err
}
