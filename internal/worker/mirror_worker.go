package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"studentbudget/internal/cache"
	"studentbudget/internal/core"
	"studentbudget/internal/events"
	applog "studentbudget/internal/log"
	"studentbudget/internal/store"
)

const (
	seenEventsSize = 4096
	seenEventsTTL  = 24 * time.Hour
)

// MirrorWorker copies ledger writes from the primary store into a mirror
// store, from live events and from periodic full reconciliation.
type MirrorWorker struct {
	primary store.Store
	mirror  store.Store
	logger  *applog.Logger

	// mu keeps event handling and reconciliation from interleaving writes.
	mu   sync.Mutex
	seen *cache.LRUCache[struct{}]
}

// ReconcileReport counts what a reconciliation pass changed.
type ReconcileReport struct {
	UsersCopied     int
	BaselinesFixed  int
	ExpensesCopied  int
	ExpensesSkipped int
}

func (r ReconcileReport) Changed() bool {
	return r.UsersCopied+r.BaselinesFixed+r.ExpensesCopied > 0
}

func NewMirrorWorker(primary, mirror store.Store, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &MirrorWorker{
		primary: primary,
		mirror:  mirror,
		logger:  logger.WithComponent(applog.ComponentWorker),
		seen:    cache.NewLRUCache[struct{}](seenEventsSize, seenEventsTTL),
	}
}

// HandleEvent applies one ledger event to the mirror. Events already
// handled recently are skipped.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev events.LedgerEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.seen.Get(ev.ID); dup {
		w.logger.DebugContext(ctx, "Skipping redelivered event", applog.FieldEventID, ev.ID)
		return nil
	}

	if err := w.apply(ctx, ev); err != nil {
		return err
	}
	w.seen.Set(ev.ID, struct{}{})

	w.logger.InfoContext(ctx, "Mirrored ledger event",
		applog.FieldEventID, ev.ID,
		applog.FieldEventType, ev.Type,
		applog.FieldUsername, ev.Username,
		applog.FieldOperation, applog.OpMirror)
	return nil
}

func (w *MirrorWorker) apply(ctx context.Context, ev events.LedgerEvent) error {
	switch ev.Type {
	case events.UserRegistered:
		u, seed, err := ev.RegisteredUser()
		if err != nil {
			return err
		}
		err = w.mirror.CreateUser(ctx, u, seed)
		if errors.Is(err, core.ErrUserExists) {
			w.logger.DebugContext(ctx, "User already in mirror", applog.FieldUsername, u.Name)
			return nil
		}
		return err

	case events.ExpenseRecorded:
		e, err := ev.RecordedExpense()
		if err != nil {
			return err
		}
		_, err = w.mirror.AppendExpense(ctx, e)
		return err

	case events.BaselineAdjusted:
		cat, delta, err := ev.Adjustment()
		if err != nil {
			return err
		}
		err = w.mirror.AdjustBaseline(ctx, ev.Username, cat, delta)
		if errors.Is(err, core.ErrUserNotFound) {
			// the next reconciliation copies the user with its current baseline
			w.logger.WarnContext(ctx, "Baseline adjustment for user missing in mirror",
				applog.FieldUsername, ev.Username,
				applog.FieldEventID, ev.ID)
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown event type %q", ev.Type)
}

// Reconcile copies every user and ledger row missing from the mirror and
// realigns baseline amounts that drifted. Ledger rows are matched as a
// multiset, so identical rows are copied as many times as they are missing.
func (w *MirrorWorker) Reconcile(ctx context.Context) (ReconcileReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		report                   ReconcileReport
		srcUsers, dstUsers       []core.User
		srcExpenses, dstExpenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		srcUsers, err = w.primary.ListUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		srcExpenses, err = w.primary.ListExpenses(gctx)
		return err
	})
	g.Go(func() (err error) {
		dstUsers, err = w.mirror.ListUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		dstExpenses, err = w.mirror.ListExpenses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("load snapshots: %w", err)
	}

	for _, u := range srcUsers {
		m, ok := store.FindUser(dstUsers, u.Name)
		if !ok {
			if err := w.mirror.CreateUser(ctx, u, nil); err != nil && !errors.Is(err, core.ErrUserExists) {
				return report, fmt.Errorf("copy user %q: %w", u.Name, err)
			}
			report.UsersCopied++
			continue
		}
		for _, cat := range core.Categories() {
			delta := u.Amount(cat).Sub(m.Amount(cat))
			if delta.IsZero() {
				continue
			}
			if err := w.mirror.AdjustBaseline(ctx, u.Name, cat, delta); err != nil {
				return report, fmt.Errorf("fix baseline %s of %q: %w", cat, u.Name, err)
			}
			report.BaselinesFixed++
		}
	}

	have := make(map[string]int, len(dstExpenses))
	for _, e := range dstExpenses {
		have[expenseKey(e)]++
	}
	for _, e := range srcExpenses {
		k := expenseKey(e)
		if have[k] > 0 {
			have[k]--
			continue
		}
		if _, err := w.mirror.AppendExpense(ctx, e); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			w.logger.WarnContext(ctx, "Skipping ledger row the mirror rejected",
				applog.FieldError, err,
				applog.FieldUsername, e.Username,
				applog.FieldCategory, string(e.Category))
			report.ExpensesSkipped++
			continue
		}
		report.ExpensesCopied++
	}

	w.logger.InfoContext(ctx, "Reconciliation finished",
		applog.FieldOperation, applog.OpReconcile,
		"users_copied", report.UsersCopied,
		"baselines_fixed", report.BaselinesFixed,
		"expenses_copied", report.ExpensesCopied,
		"expenses_skipped", report.ExpensesSkipped)
	return report, nil
}

func expenseKey(e core.Expense) string {
	return strings.Join([]string{e.Username, string(e.Category), e.Amount.String(), e.Date.String(), e.Note}, "\x1f")
}
