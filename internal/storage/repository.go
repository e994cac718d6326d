package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/log"
	"studentbudget/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements store.Store on a local SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection keeps writers strictly serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite schema ready",
		"schema_version", schema.Version,
		"migrated", schema.Applied,
		"db_path", dbPath)
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, name string) (core.User, error) {
	u, err := r.queries.GetUser(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUser inserts the user and its seed rows in one transaction.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User, seed []core.Expense) error {
	return r.inTx(ctx, func(q *Queries) error {
		n, err := q.CountUsersByName(ctx, u.Name)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if n > 0 {
			return core.ErrUserExists
		}
		if err := q.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		for _, e := range seed {
			if _, err := q.CreateExpense(ctx, e); err != nil {
				return fmt.Errorf("insert seed expense: %w", err)
			}
		}
		r.logger.InfoContext(ctx, "User saved to SQLite", log.FieldUsername, u.Name, "seed_rows", len(seed))
		return nil
	})
}

func (r *SQLiteRepository) AdjustBaseline(ctx context.Context, name string, cat core.Category, delta decimal.Decimal) error {
	column := store.SQLColumn(cat)
	if column == "" {
		return store.ErrNotBaseline
	}
	return r.inTx(ctx, func(q *Queries) error {
		u, err := q.GetUser(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if _, err := q.SetBaseline(ctx, name, column, u.Amount(cat).Add(delta)); err != nil {
			return fmt.Errorf("update baseline: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	es, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return es, nil
}

func (r *SQLiteRepository) ListUserExpenses(ctx context.Context, name string) ([]core.Expense, error) {
	es, err := r.queries.ListExpensesByUser(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list expenses of %s: %w", name, err)
	}
	return es, nil
}

// AppendExpense returns the row id as reference.
func (r *SQLiteRepository) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	id, err := r.queries.CreateExpense(ctx, e)
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}
	r.logger.DebugContext(ctx, "Expense saved to SQLite", "id", id, log.FieldUsername, e.Username, log.FieldCategory, string(e.Category))
	return strconv.FormatInt(id, 10), nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
