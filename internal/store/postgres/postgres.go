// Package postgres implements the record store on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	pool *pgxpool.Pool
}

// Open connects, pings and migrates.
func Open(ctx context.Context, url string) (*Store, error) {
	if err := RunMigrations(url); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// RunMigrations applies the embedded migrations through the pgx5 driver.
func RunMigrations(url string) error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(url))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func migrateURL(url string) string {
	for _, p := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, p) {
			return "pgx5://" + strings.TrimPrefix(url, p)
		}
	}
	return url
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var (
	userSelect = func() string {
		cols := []string{"name", "password", "age", "gender"}
		for _, c := range store.SQLBaselineColumns() {
			cols = append(cols, c+"::text")
		}
		cols = append(cols, "monthly_income::text")
		return "SELECT " + strings.Join(cols, ", ") + " FROM users"
	}()

	userInsert = func() string {
		cols := append([]string{"name", "password", "age", "gender"}, store.SQLBaselineColumns()...)
		cols = append(cols, "monthly_income")
		params := make([]string, len(cols))
		for i := range cols {
			params[i] = "$" + strconv.Itoa(i+1)
			if i >= 4 {
				params[i] += "::text::numeric"
			}
		}
		return "INSERT INTO users (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(params, ", ") +
			") ON CONFLICT (name) DO NOTHING RETURNING id"
	}()
)

const (
	expenseInsert = `INSERT INTO expenses (username, category, amount, date, note)
		VALUES ($1, $2, $3::text::numeric, NULLIF($4::text, '')::date, $5) RETURNING id`
	expenseSelect = `SELECT username, category, amount::text, COALESCE(date::text, ''), note FROM expenses`
)

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := s.pool.Query(ctx, userSelect+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
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

func (s *Store) GetUser(ctx context.Context, name string) (core.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, userSelect+" WHERE name = $1", name))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUser relies on the unique name constraint: a conflicting insert
// returns no row and the transaction is rolled back before any seed row.
func (s *Store) CreateUser(ctx context.Context, u core.User, seed []core.Expense) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, userInsert, userArgs(u)...).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrUserExists
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		for _, e := range seed {
			if _, err := tx.Exec(ctx, expenseInsert, expenseArgs(e)...); err != nil {
				return fmt.Errorf("insert seed expense: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) AdjustBaseline(ctx context.Context, name string, cat core.Category, delta decimal.Decimal) error {
	col := store.SQLColumn(cat)
	if col == "" {
		return store.ErrNotBaseline
	}
	tag, err := s.pool.Exec(ctx, "UPDATE users SET "+col+" = "+col+" + $1::text::numeric WHERE name = $2", delta.String(), name)
	if err != nil {
		return fmt.Errorf("update baseline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.listExpenses(ctx, expenseSelect+" ORDER BY id")
}

func (s *Store) ListUserExpenses(ctx context.Context, name string) ([]core.Expense, error) {
	return s.listExpenses(ctx, expenseSelect+" WHERE username = $1 ORDER BY id", name)
}

func (s *Store) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	var id int64
	if err := s.pool.QueryRow(ctx, expenseInsert, expenseArgs(e)...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) listExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	out := make([]core.Expense, 0)
	for rows.Next() {
		var e core.Expense
		var category, amount, date string
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

func userArgs(u core.User) []any {
	args := []any{u.Name, u.Password, u.Age, string(u.Gender)}
	for _, cat := range core.Categories() {
		args = append(args, u.Amount(cat).String())
	}
	return append(args, u.MonthlyIncome.String())
}

func expenseArgs(e core.Expense) []any {
	return []any{e.Username, string(e.Category), e.Amount.String(), e.Date.String(), e.Note}
}

func scanUser(row pgx.Row) (core.User, error) {
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
	if err := row.Scan(dest...); err != nil {
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
