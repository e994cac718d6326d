// Package events defines the ledger events published after every
// successful write and how they map back onto domain values.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/store"
)

type Type string

const (
	UserRegistered   Type = "user.registered"
	ExpenseRecorded  Type = "expense.recorded"
	BaselineAdjusted Type = "baseline.adjusted"
)

// LedgerEvent is the message put on the exchange. User and expense rows use
// the persisted record layout (core.UsersHeader / core.ExpensesHeader).
type LedgerEvent struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
	Username   string     `json:"username"`
	User       []string   `json:"user,omitempty"`
	Seed       [][]string `json:"seed,omitempty"`
	Expense    []string   `json:"expense,omitempty"`
	Ref        string     `json:"ref,omitempty"`
	Category   string     `json:"category,omitempty"`
	Delta      string     `json:"delta,omitempty"`
}

// Publisher sends ledger events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev LedgerEvent) error
}

func newEvent(t Type, username string) LedgerEvent {
	return LedgerEvent{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Username:   username,
	}
}

func NewUserRegistered(u core.User, seed []core.Expense) LedgerEvent {
	ev := newEvent(UserRegistered, u.Name)
	ev.User = store.UserRecord(u)
	for _, e := range seed {
		ev.Seed = append(ev.Seed, store.ExpenseRecord(e))
	}
	return ev
}

func NewExpenseRecorded(e core.Expense, ref string) LedgerEvent {
	ev := newEvent(ExpenseRecorded, e.Username)
	ev.Expense = store.ExpenseRecord(e)
	ev.Ref = ref
	return ev
}

func NewBaselineAdjusted(username string, cat core.Category, delta decimal.Decimal) LedgerEvent {
	ev := newEvent(BaselineAdjusted, username)
	ev.Category = string(cat)
	ev.Delta = delta.String()
	return ev
}

// RegisteredUser decodes a user.registered payload.
func (ev LedgerEvent) RegisteredUser() (core.User, []core.Expense, error) {
	if ev.Type != UserRegistered {
		return core.User{}, nil, fmt.Errorf("event %s is %s, not %s", ev.ID, ev.Type, UserRegistered)
	}
	ucols, _ := store.IndexHeader(core.UsersHeader)
	u, err := store.ParseUser(ucols, ev.User)
	if err != nil {
		return core.User{}, nil, fmt.Errorf("event %s user: %w", ev.ID, err)
	}
	ecols, _ := store.IndexHeader(core.ExpensesHeader)
	seed := make([]core.Expense, 0, len(ev.Seed))
	for _, row := range ev.Seed {
		e, err := store.ParseExpense(ecols, row)
		if err != nil {
			return core.User{}, nil, fmt.Errorf("event %s seed: %w", ev.ID, err)
		}
		seed = append(seed, e)
	}
	return u, seed, nil
}

// RecordedExpense decodes an expense.recorded payload.
func (ev LedgerEvent) RecordedExpense() (core.Expense, error) {
	if ev.Type != ExpenseRecorded {
		return core.Expense{}, fmt.Errorf("event %s is %s, not %s", ev.ID, ev.Type, ExpenseRecorded)
	}
	cols, _ := store.IndexHeader(core.ExpensesHeader)
	e, err := store.ParseExpense(cols, ev.Expense)
	if err != nil {
		return core.Expense{}, fmt.Errorf("event %s expense: %w", ev.ID, err)
	}
	return e, nil
}

// Adjustment decodes a baseline.adjusted payload.
func (ev LedgerEvent) Adjustment() (core.Category, decimal.Decimal, error) {
	if ev.Type != BaselineAdjusted {
		return "", decimal.Zero, fmt.Errorf("event %s is %s, not %s", ev.ID, ev.Type, BaselineAdjusted)
	}
	delta, err := decimal.NewFromString(ev.Delta)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("event %s delta %q: %w", ev.ID, ev.Delta, store.ErrMalformed)
	}
	return core.Category(ev.Category), delta, nil
}

// ToJSON converts the event to JSON bytes
func (ev LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(ev)
}

// FromJSON parses an event and rejects unknown types.
func FromJSON(data []byte) (LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return LedgerEvent{}, err
	}
	switch ev.Type {
	case UserRegistered, ExpenseRecorded, BaselineAdjusted:
	default:
		return LedgerEvent{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ID == "" {
		return LedgerEvent{}, fmt.Errorf("event without id")
	}
	return ev, nil
}

// Recorder keeps published events in memory. Used when AMQP is disabled
// in tests and by the worker's in-process mode.
type Recorder struct {
	mu     sync.Mutex
	events []LedgerEvent
}

func (r *Recorder) Publish(_ context.Context, ev LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []LedgerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LedgerEvent(nil), r.events...)
}
