// Package sheets keeps users and the expense ledger in two tabs of a Google
// spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	gsheet "google.golang.org/api/sheets/v4"

	"studentbudget/internal/core"
	"studentbudget/internal/log"
	"studentbudget/internal/store"
)

type Config struct {
	SpreadsheetID   string
	UsersSheet      string
	ExpensesSheet   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	mu            sync.Mutex
	svc           *gsheet.Service
	spreadsheetID string
	values        ValuesAPI
	usersSheet    string
	expensesSheet string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ store.Store  = (*Client)(nil)
	_ store.Pinger = (*Client)(nil)
)

// New creates a Sheets-backed store authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg.CredentialsJSON, cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	c := NewWithValues(serviceValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg.UsersSheet, cfg.ExpensesSheet, logger)
	c.svc = svc
	c.spreadsheetID = cfg.SpreadsheetID
	return c, nil
}

// NewWithValues builds a client on any ValuesAPI implementation.
func NewWithValues(values ValuesAPI, usersSheet, expensesSheet string, logger *log.Logger) *Client {
	if usersSheet == "" {
		usersSheet = "Users"
	}
	if expensesSheet == "" {
		expensesSheet = "Expenses"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		values:        values,
		usersSheet:    usersSheet,
		expensesSheet: expensesSheet,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) usersRange() string { return c.usersSheet + "!A:" + columnLetter(len(core.UsersHeader)-1) }
func (c *Client) expensesRange() string { return c.expensesSheet + "!A:" + columnLetter(len(core.ExpensesHeader)-1) }

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, c.usersSheet+"!A1:A1")
	return err
}

// get reads a range; a missing tab reads as no rows.
func (c *Client) get(ctx context.Context, rng string) ([][]any, error) {
	rows, err := c.values.Get(ctx, rng)
	if isMissingTab(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return rows, nil
}

// snapshot loads both tabs concurrently.
func (c *Client) snapshot(ctx context.Context) (users, expenses [][]any, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = c.get(gctx, c.usersRange())
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = c.get(gctx, c.expensesRange())
		return err
	})
	err = g.Wait()
	return users, expenses, err
}

func (c *Client) parseUsers(grid [][]any) ([]core.User, error) {
	if len(grid) == 0 {
		return nil, nil
	}
	cols, err := store.IndexHeader(store.Cells(grid[0]), "Name", "Password")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.usersSheet, err)
	}
	var users []core.User
	for i, row := range grid[1:] {
		if len(row) == 0 {
			continue
		}
		u, err := store.ParseUser(cols, store.Cells(row))
		if err != nil {
			c.logger.Warn("skipping users row", log.FieldRow, i+2, log.FieldError, err)
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (c *Client) parseExpenses(grid [][]any) ([]core.Expense, error) {
	if len(grid) == 0 {
		return []core.Expense{}, nil
	}
	cols, err := store.IndexHeader(store.Cells(grid[0]), "Username", "Category", "Amount")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.expensesSheet, err)
	}
	out := make([]core.Expense, 0, len(grid)-1)
	for i, row := range grid[1:] {
		if len(row) == 0 {
			continue
		}
		e, err := store.ParseExpense(cols, store.Cells(row))
		if err != nil {
			c.logger.Warn("skipping expenses row", log.FieldRow, i+2, log.FieldError, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]core.User, error) {
	grid, err := c.get(ctx, c.usersRange())
	if err != nil {
		return nil, err
	}
	return c.parseUsers(grid)
}

func (c *Client) GetUser(ctx context.Context, name string) (core.User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return core.User{}, err
	}
	if u, ok := store.FindUser(users, name); ok {
		return u, nil
	}
	return core.User{}, core.ErrUserNotFound
}

func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	grid, err := c.get(ctx, c.expensesRange())
	if err != nil {
		return nil, err
	}
	return c.parseExpenses(grid)
}

func (c *Client) ListUserExpenses(ctx context.Context, name string) ([]core.Expense, error) {
	es, err := c.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}
	return store.FilterByUser(es, name), nil
}

// Snapshot returns users and ledger read concurrently from both tabs.
func (c *Client) Snapshot(ctx context.Context) ([]core.User, []core.Expense, error) {
	ug, eg, err := c.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	users, err := c.parseUsers(ug)
	if err != nil {
		return nil, nil, err
	}
	es, err := c.parseExpenses(eg)
	if err != nil {
		return nil, nil, err
	}
	return users, es, nil
}

// CreateUser is serialized per process. Concurrent writers in other
// processes are not coordinated. Seed rows go in before the user row, so
// a failed seed append leaves no user behind to block a retry.
func (c *Client) CreateUser(ctx context.Context, u core.User, seed []core.Expense) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ug, eg, err := c.snapshot(ctx)
	if err != nil {
		return err
	}
	users, err := c.parseUsers(ug)
	if err != nil {
		return err
	}
	if _, ok := store.FindUser(users, u.Name); ok {
		return core.ErrUserExists
	}
	if len(seed) > 0 {
		rows := make([][]any, 0, len(seed))
		for _, e := range seed {
			rows = append(rows, expenseValues(e))
		}
		if err := c.appendRows(ctx, c.expensesSheet, len(eg) == 0, core.ExpensesHeader, rows); err != nil {
			return err
		}
	}
	if err := c.appendRows(ctx, c.usersSheet, len(ug) == 0, core.UsersHeader, [][]any{userValues(u)}); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "User appended to sheet", log.FieldUsername, u.Name, "seed_rows", len(seed))
	return nil
}

func (c *Client) AdjustBaseline(ctx context.Context, name string, cat core.Category, delta decimal.Decimal) error {
	if !cat.IsBaseline() {
		return store.ErrNotBaseline
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	grid, err := c.get(ctx, c.usersRange())
	if err != nil {
		return err
	}
	if len(grid) == 0 {
		return core.ErrUserNotFound
	}
	header := store.Cells(grid[0])
	cols, err := store.IndexHeader(header, "Name", string(cat))
	if err != nil {
		return fmt.Errorf("%s: %w", c.usersSheet, err)
	}
	for i, row := range grid[1:] {
		cells := store.Cells(row)
		if cols.Get(cells, "Name") != name {
			continue
		}
		u, err := store.ParseUser(cols, cells)
		if err != nil {
			return err
		}
		amount := u.Amount(cat).Add(delta)
		cell := fmt.Sprintf("%s!%s%d", c.usersSheet, columnLetter(cols[string(cat)]), i+2)
		if err := c.values.Update(ctx, cell, [][]any{{amount.InexactFloat64()}}); err != nil {
			return fmt.Errorf("update %s: %w", cell, err)
		}
		return nil
	}
	return core.ErrUserNotFound
}

// AppendExpense returns the A1 range the row was written to.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	head, err := c.get(ctx, c.expensesSheet+"!A1:A1")
	if err != nil {
		return "", err
	}
	if len(head) == 0 {
		if err := c.writeHeader(ctx, c.expensesSheet, core.ExpensesHeader); err != nil {
			return "", err
		}
	}
	ref, err := c.values.Append(ctx, c.expensesRange(), [][]any{expenseValues(e)})
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.expensesSheet, err)
	}
	return ref, nil
}

func (c *Client) appendRows(ctx context.Context, sheet string, needHeader bool, header []string, rows [][]any) error {
	if needHeader {
		if err := c.writeHeader(ctx, sheet, header); err != nil {
			return err
		}
	}
	rng := sheet + "!A:" + columnLetter(len(header)-1)
	if _, err := c.values.Append(ctx, rng, rows); err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

func (c *Client) writeHeader(ctx context.Context, sheet string, header []string) error {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	rng := fmt.Sprintf("%s!A1:%s1", sheet, columnLetter(len(header)-1))
	if err := c.values.Update(ctx, rng, [][]any{row}); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	return nil
}

// EnsureTabs creates the users and expenses tabs when missing and writes
// their header rows. It needs a client built with New.
func (c *Client) EnsureTabs(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	existing := map[string]bool{}
	for _, sh := range ss.Sheets {
		existing[sh.Properties.Title] = true
	}
	var created []string
	var reqs []*gsheet.Request
	for _, title := range []string{c.usersSheet, c.expensesSheet} {
		if existing[title] {
			continue
		}
		reqs = append(reqs, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}}})
		created = append(created, title)
	}
	if len(reqs) > 0 {
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do(); err != nil {
			return nil, fmt.Errorf("add tabs: %w", err)
		}
	}
	for sheet, header := range map[string][]string{c.usersSheet: core.UsersHeader, c.expensesSheet: core.ExpensesHeader} {
		head, err := c.get(ctx, sheet+"!A1:A1")
		if err != nil {
			return nil, err
		}
		if len(head) == 0 {
			if err := c.writeHeader(ctx, sheet, header); err != nil {
				return nil, err
			}
		}
	}
	return created, nil
}

func userValues(u core.User) []any {
	row := []any{u.Name, u.Password, u.Age, string(u.Gender)}
	for _, cat := range core.Categories() {
		row = append(row, u.Amount(cat).InexactFloat64())
	}
	return append(row, u.MonthlyIncome.InexactFloat64())
}

func expenseValues(e core.Expense) []any {
	return []any{e.Username, string(e.Category), e.Amount.InexactFloat64(), e.Date.String(), e.Note}
}
