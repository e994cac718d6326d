package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"studentbudget/internal/advisor"
	"studentbudget/internal/core"
	applog "studentbudget/internal/log"
	"studentbudget/internal/metrics"
	"studentbudget/internal/store"
)

// OtherCategory is the form choice that takes a free-text category name.
const OtherCategory = "Other"

// ErrValidation wraps every form rejection so the HTTP layer can answer 422.
var ErrValidation = errors.New("validation failed")

var minExpense = decimal.RequireFromString("0.01")

// RegistrationForm is the raw registration input. Numbers are kept as typed.
type RegistrationForm struct {
	Name          string
	Password      string
	Age           string
	Gender        string
	Baseline      map[core.Category]string
	MonthlyIncome string
}

// ExpenseForm is the raw "Add Expense" input. An empty Date means today.
type ExpenseForm struct {
	Category       string
	CustomCategory string
	Amount         string
	Date           string
	Note           string
}

// Dashboard is everything the logged-in views render for one user.
type Dashboard struct {
	User       core.User
	Metrics    metrics.UserMetrics
	Shares     []metrics.Share
	Bars       []metrics.Bar
	Tips       advisor.Tips
	Guidelines []advisor.Guideline
	Cohort     CohortReport
}

// CohortReport holds the cohort averages and, for a logged-in user, the
// per-category comparison. InsufficientData is set for an empty cohort.
type CohortReport struct {
	Users            int
	Categories       []core.Category
	Averages         metrics.CohortAverages
	Comparison       []metrics.Comparison
	InsufficientData bool
}

type Options struct {
	// HashPasswords stores new passwords as bcrypt hashes.
	HashPasswords bool
	// Today overrides the clock used for seed and expense dates.
	Today func() core.Date
}

// BudgetService orchestrates registration, login, expense recording and the
// dashboard computations over one record store.
type BudgetService struct {
	store  store.Store
	opts   Options
	logger *applog.Logger
}

func NewBudgetService(s store.Store, opts Options, logger *applog.Logger) *BudgetService {
	if opts.Today == nil {
		opts.Today = core.Today
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &BudgetService{store: s, opts: opts, logger: logger.WithComponent(applog.ComponentBudget)}
}

// Register validates the form, refuses duplicate names and writes the user
// together with one seed expense per positive baseline amount.
func (s *BudgetService) Register(ctx context.Context, form RegistrationForm) (core.User, error) {
	u, err := parseRegistration(form)
	if err != nil {
		return core.User{}, err
	}

	if _, err := s.store.GetUser(ctx, u.Name); err == nil {
		return core.User{}, core.ErrUserExists
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return core.User{}, fmt.Errorf("check username: %w", err)
	}

	if s.opts.HashPasswords {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return core.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.Password = string(hash)
	}

	seed := core.SeedExpenses(u, s.opts.Today())
	if err := s.store.CreateUser(ctx, u, seed); err != nil {
		if errors.Is(err, core.ErrUserExists) {
			return core.User{}, err
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		applog.FieldUsername, u.Name,
		applog.FieldOperation, applog.OpRegister,
		"seed_rows", len(seed))
	return u, nil
}

// Authenticate returns the user when name and password match. Unknown
// users and wrong passwords both give core.ErrInvalidCredentials.
func (s *BudgetService) Authenticate(ctx context.Context, name, password string) (core.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.User{}, core.ErrInvalidCredentials
	}
	u, err := s.store.GetUser(ctx, name)
	if errors.Is(err, core.ErrUserNotFound) {
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	if !passwordMatches(u.Password, password) {
		s.logger.DebugContext(ctx, "Password mismatch", applog.FieldUsername, name, applog.FieldOperation, applog.OpLogin)
		return core.User{}, core.ErrInvalidCredentials
	}
	return u, nil
}

// AddExpense appends a ledger row for username. For a baseline category
// the user's baseline amount is raised by the same amount as well.
func (s *BudgetService) AddExpense(ctx context.Context, username string, form ExpenseForm) (string, error) {
	e, err := s.parseExpense(username, form)
	if err != nil {
		return "", err
	}
	if _, err := s.store.GetUser(ctx, username); err != nil {
		return "", err
	}

	ref, err := s.store.AppendExpense(ctx, e)
	if err != nil {
		return "", fmt.Errorf("append expense: %w", err)
	}
	if e.Category.IsBaseline() {
		if err := s.store.AdjustBaseline(ctx, username, e.Category, e.Amount); err != nil {
			return ref, fmt.Errorf("adjust baseline: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Expense recorded",
		applog.NewFields().
			WithOperation(applog.OpAppend).
			WithExpense(username, string(e.Category), e.Amount.StringFixed(2)).
			ToSlice()...)
	return ref, nil
}

// Dashboard recomputes every figure from a fresh snapshot of the store.
func (s *BudgetService) Dashboard(ctx context.Context, username string) (Dashboard, error) {
	var (
		users    []core.User
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.store.ListUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.store.ListUserExpenses(gctx, username)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load snapshot: %w", err)
	}

	user, ok := store.FindUser(users, username)
	if !ok {
		return Dashboard{}, core.ErrUserNotFound
	}

	m := metrics.ComputeUserMetrics(user, expenses)
	return Dashboard{
		User:       user,
		Metrics:    m,
		Shares:     metrics.CategoryShares(m.ByCategory),
		Bars:       metrics.BarWidths(m.ByCategory),
		Tips:       advisor.GenerateTips(user, expenses),
		Guidelines: advisor.Guidelines(),
		Cohort:     cohortReport(users, &user),
	}, nil
}

// Cohort returns the averages table without a personal comparison.
func (s *BudgetService) Cohort(ctx context.Context) (CohortReport, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return CohortReport{}, fmt.Errorf("list users: %w", err)
	}
	return cohortReport(users, nil), nil
}

func cohortReport(users []core.User, user *core.User) CohortReport {
	cats := core.Categories()
	r := CohortReport{Users: len(users), Categories: cats}
	avg, err := metrics.ComputeCohortAverages(users, cats)
	if errors.Is(err, metrics.ErrInsufficientData) {
		r.InsufficientData = true
		return r
	}
	r.Averages = avg
	if user != nil {
		r.Comparison = metrics.ComputeComparison(*user, avg, cats)
	}
	return r
}

func parseRegistration(form RegistrationForm) (core.User, error) {
	u := core.User{
		Name:     strings.TrimSpace(form.Name),
		Password: form.Password,
		Baseline: make(map[core.Category]decimal.Decimal, len(core.Categories())),
	}
	if u.Name == "" {
		return core.User{}, invalid("name", core.ErrEmptyName)
	}
	age, err := strconv.Atoi(strings.TrimSpace(form.Age))
	if err != nil {
		return core.User{}, invalid("age", core.ErrInvalidAge)
	}
	u.Age = age
	if u.Gender, err = core.ParseGender(form.Gender); err != nil {
		return core.User{}, invalid("gender", err)
	}
	for _, cat := range core.Categories() {
		amt, err := core.ParseNonNegative(form.Baseline[cat])
		if err != nil {
			return core.User{}, invalid(cat.Label(), err)
		}
		u.Baseline[cat] = amt
	}
	if u.MonthlyIncome, err = core.ParseNonNegative(form.MonthlyIncome); err != nil {
		return core.User{}, invalid("monthly income", err)
	}
	if err := u.Validate(); err != nil {
		return core.User{}, invalid("user", err)
	}
	return u, nil
}

func (s *BudgetService) parseExpense(username string, form ExpenseForm) (core.Expense, error) {
	cat := strings.TrimSpace(form.Category)
	if cat == OtherCategory {
		cat = strings.TrimSpace(form.CustomCategory)
	}
	if cat == "" {
		return core.Expense{}, invalid("category", core.ErrEmptyCategory)
	}
	amt, err := core.ParseAmount(form.Amount)
	if err != nil || amt.LessThan(minExpense) {
		return core.Expense{}, invalid("amount", core.ErrInvalidAmount)
	}
	date := s.opts.Today()
	if strings.TrimSpace(form.Date) != "" {
		if date, err = core.ParseDate(form.Date); err != nil {
			return core.Expense{}, invalid("date", err)
		}
	}
	e := core.Expense{
		Username: username,
		Category: core.Category(cat),
		Amount:   amt,
		Date:     date,
		Note:     strings.TrimSpace(form.Note),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, invalid("expense", err)
	}
	return e, nil
}

func invalid(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrValidation, field, err)
}

// passwordMatches compares against a bcrypt hash when the stored value is
// one, and verbatim otherwise so plain text files keep working.
func passwordMatches(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
