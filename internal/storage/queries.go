package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/store"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the hand-written statements for the users and expenses
// tables.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

var (
	userColumns = "name, password, age, gender, " + strings.Join(store.SQLBaselineColumns(), ", ") + ", monthly_income"

	insertUser = "INSERT INTO users (" + userColumns + ") VALUES (?" + strings.Repeat(", ?", len(core.UsersHeader)-1) + ")"

	selectUsers = "SELECT " + userColumns + " FROM users"
)

const (
	countUsersByName = `SELECT COUNT(*) FROM users WHERE name = ?`

	insertExpense = `INSERT INTO expenses (username, category, amount, date, note) VALUES (?, ?, ?, ?, ?)`

	selectExpenses = `SELECT username, category, amount, date, note FROM expenses`
)

func (q *Queries) CountUsersByName(ctx context.Context, name string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsersByName, name).Scan(&n)
	return n, err
}

func (q *Queries) CreateUser(ctx context.Context, u core.User) error {
	_, err := q.db.ExecContext(ctx, insertUser, userArgs(u)...)
	return err
}

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, selectUsers+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *Queries) GetUser(ctx context.Context, name string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, selectUsers+" WHERE name = ? ORDER BY id LIMIT 1", name)
	return scanUser(row)
}

// SetBaseline overwrites one baseline column. column must come from
// store.SQLColumn.
func (q *Queries) SetBaseline(ctx context.Context, name, column string, amount decimal.Decimal) (int64, error) {
	res, err := q.db.ExecContext(ctx, "UPDATE users SET "+column+" = ? WHERE name = ?", amount.String(), name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertExpense, e.Username, string(e.Category), e.Amount.String(), e.Date.String(), e.Note)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return q.listExpenses(ctx, selectExpenses+" ORDER BY id")
}

func (q *Queries) ListExpensesByUser(ctx context.Context, name string) ([]core.Expense, error) {
	return q.listExpenses(ctx, selectExpenses+" WHERE username = ? ORDER BY id", name)
}

func (q *Queries) listExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]core.Expense, 0)
	for rows.Next() {
		var (
			e                core.Expense
			category, amount string
			date             string
		)
		if err := rows.Scan(&e.Username, &category, &amount, &date, &e.Note); err != nil {
			return nil, err
		}
		e.Category = core.Category(category)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("%w: amount %q", store.ErrMalformed, amount)
		}
		if d, err := core.ParseDate(date); err == nil {
			e.Date = d
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func userArgs(u core.User) []any {
	args := []any{u.Name, u.Password, u.Age, string(u.Gender)}
	for _, cat := range core.Categories() {
		args = append(args, u.Amount(cat).String())
	}
	return append(args, u.MonthlyIncome.String())
}

func scanUser(s scanner) (core.User, error) {
	var (
		u       core.User
		gender  string
		amounts = make([]string, len(core.Categories()))
		income  string
	)
	dest := []any{&u.Name, &u.Password, &u.Age, &gender}
	for i := range amounts {
		dest = append(dest, &amounts[i])
	}
	dest = append(dest, &income)
	if err := s.Scan(dest...); err != nil {
		return core.User{}, err
	}
	u.Gender = core.Gender(gender)
	u.Baseline = make(map[core.Category]decimal.Decimal, len(amounts))
	for i, cat := range core.Categories() {
		d, err := decimal.NewFromString(amounts[i])
		if err != nil {
			return core.User{}, fmt.Errorf("%w: %s of %q", store.ErrMalformed, cat, u.Name)
		}
		u.Baseline[cat] = d
	}
	d, err := decimal.NewFromString(income)
	if err != nil {
		return core.User{}, fmt.Errorf("%w: income of %q", store.ErrMalformed, u.Name)
	}
	u.MonthlyIncome = d
	return u, nil
}
