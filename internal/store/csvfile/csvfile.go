// Package csvfile keeps users and the expense ledger in two CSV files that
// share their layout with spreadsheet exports.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/log"
	"studentbudget/internal/store"
)

const (
	UsersFile    = "users.csv"
	ExpensesFile = "expenses.csv"
)

// Store reads the whole file on every query and rewrites it on every
// mutation. A single mutex serializes all access.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *log.Logger
}

// Open prepares dir for use. Missing files are created lazily on first write.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{dir: dir, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (s *Store) Close() error { return nil }

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readUsers()
	return parsedUsers(rows), err
}

func (s *Store) GetUser(_ context.Context, name string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readUsers()
	if err != nil {
		return core.User{}, err
	}
	if u, ok := store.FindUser(parsedUsers(rows), name); ok {
		return u, nil
	}
	return core.User{}, core.ErrUserNotFound
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readExpenses()
	return parsedExpenses(rows), err
}

func (s *Store) ListUserExpenses(_ context.Context, name string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readExpenses()
	if err != nil {
		return nil, err
	}
	return store.FilterByUser(parsedExpenses(rows), name), nil
}

// CreateUser appends the user row, then the seed rows. The duplicate check
// and both writes happen under one lock. A name held by a row that does
// not parse still counts as taken.
func (s *Store) CreateUser(_ context.Context, u core.User, seed []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return err
	}
	for _, r := range users {
		if r.name() == u.Name {
			return core.ErrUserExists
		}
	}
	es, err := s.readExpenses()
	if err != nil {
		return err
	}
	if err := s.writeUsers(append(users, newUserRow(u))); err != nil {
		return err
	}
	if len(seed) == 0 {
		return nil
	}
	for _, e := range seed {
		es = append(es, newExpenseRow(e))
	}
	if err := s.writeExpenses(es); err != nil {
		// roll the user row back so a retry is not refused as a duplicate
		if rerr := s.writeUsers(users); rerr != nil {
			s.logger.Error("rollback of user row failed", log.FieldUsername, u.Name, log.FieldError, rerr)
		}
		return err
	}
	return nil
}

func (s *Store) AdjustBaseline(_ context.Context, name string, cat core.Category, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return err
	}
	for i, r := range users {
		if !r.parsed || r.user.Name != name {
			continue
		}
		adjusted, err := store.ApplyDelta(r.user, cat, delta)
		if err != nil {
			return err
		}
		users[i] = newUserRow(adjusted)
		return s.writeUsers(users)
	}
	return core.ErrUserNotFound
}

// AppendExpense returns the 1-based data row number as reference.
func (s *Store) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	es, err := s.readExpenses()
	if err != nil {
		return "", err
	}
	es = append(es, newExpenseRow(e))
	if err := s.writeExpenses(es); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", ExpensesFile, len(es)), nil
}

// userRow is one data row of users.csv. cells holds the text as read, in
// core.UsersHeader order; rewrites emit cells, so rows that failed to
// parse survive untouched.
type userRow struct {
	cells  []string
	user   core.User
	parsed bool
}

func newUserRow(u core.User) userRow {
	return userRow{cells: store.UserRecord(u), user: u, parsed: true}
}

// name is the Name cell, the first column of the users layout.
func (r userRow) name() string { return r.cells[0] }

type expenseRow struct {
	cells   []string
	expense core.Expense
	parsed  bool
}

func newExpenseRow(e core.Expense) expenseRow {
	return expenseRow{cells: store.ExpenseRecord(e), expense: e, parsed: true}
}

func parsedUsers(rows []userRow) []core.User {
	var out []core.User
	for _, r := range rows {
		if r.parsed {
			out = append(out, r.user)
		}
	}
	return out
}

func parsedExpenses(rows []expenseRow) []core.Expense {
	var out []core.Expense
	for _, r := range rows {
		if r.parsed {
			out = append(out, r.expense)
		}
	}
	return out
}

func (s *Store) readUsers() ([]userRow, error) {
	var rows []userRow
	err := s.read(UsersFile, []string{"Name", "Password"}, func(cols store.Columns, row []string, line int) {
		r := userRow{cells: canonical(cols, row, core.UsersHeader)}
		u, err := store.ParseUser(cols, row)
		if err != nil {
			s.logger.Warn("keeping unreadable users row as is", log.FieldRow, line, log.FieldError, err)
		} else {
			r.user, r.parsed = u, true
		}
		rows = append(rows, r)
	})
	return rows, err
}

func (s *Store) readExpenses() ([]expenseRow, error) {
	var rows []expenseRow
	err := s.read(ExpensesFile, []string{"Username", "Category", "Amount"}, func(cols store.Columns, row []string, line int) {
		r := expenseRow{cells: canonical(cols, row, core.ExpensesHeader)}
		e, err := store.ParseExpense(cols, row)
		if err != nil {
			s.logger.Warn("keeping unreadable expenses row as is", log.FieldRow, line, log.FieldError, err)
		} else {
			r.expense, r.parsed = e, true
		}
		rows = append(rows, r)
	})
	return rows, err
}

// canonical reorders row into header order. Files written by other tools
// may order or omit columns differently.
func canonical(cols store.Columns, row []string, header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = cols.Get(row, h)
	}
	return out
}

// read streams every data row of name to fn. A missing or empty file is
// an empty collection.
func (s *Store) read(name string, required []string, fn func(store.Columns, []string, int)) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil
	}
	cols, err := store.IndexHeader(records[0], required...)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for i, row := range records[1:] {
		fn(cols, row, i+2)
	}
	return nil
}

func (s *Store) writeUsers(users []userRow) error {
	rows := make([][]string, 0, len(users)+1)
	rows = append(rows, core.UsersHeader)
	for _, r := range users {
		rows = append(rows, r.cells)
	}
	return s.write(UsersFile, rows)
}

func (s *Store) writeExpenses(es []expenseRow) error {
	rows := make([][]string, 0, len(es)+1)
	rows = append(rows, core.ExpensesHeader)
	for _, r := range es {
		rows = append(rows, r.cells)
	}
	return s.write(ExpensesFile, rows)
}

// write replaces name atomically through a temp file in the same directory.
func (s *Store) write(name string, rows [][]string) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
