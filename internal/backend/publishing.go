package backend

import (
	"context"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/events"
	applog "studentbudget/internal/log"
	"studentbudget/internal/store"
)

// PublishingStore publishes a ledger event after every successful write to
// the wrapped store. Publish failures are logged and never returned.
type PublishingStore struct {
	store.Store
	publisher events.Publisher
	logger    *applog.Logger
}

var (
	_ store.Store  = (*PublishingStore)(nil)
	_ store.Pinger = (*PublishingStore)(nil)
)

// WithEvents wraps s so that writes are announced on publisher. A nil
// publisher returns s unchanged.
func WithEvents(s store.Store, publisher events.Publisher, logger *applog.Logger) store.Store {
	if publisher == nil {
		return s
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &PublishingStore{Store: s, publisher: publisher, logger: logger.WithComponent(applog.ComponentAMQP)}
}

func (p *PublishingStore) Ping(ctx context.Context) error {
	return store.Ping(ctx, p.Store)
}

func (p *PublishingStore) CreateUser(ctx context.Context, u core.User, seed []core.Expense) error {
	if err := p.Store.CreateUser(ctx, u, seed); err != nil {
		return err
	}
	p.publish(ctx, events.NewUserRegistered(u, seed))
	return nil
}

func (p *PublishingStore) AdjustBaseline(ctx context.Context, name string, cat core.Category, delta decimal.Decimal) error {
	if err := p.Store.AdjustBaseline(ctx, name, cat, delta); err != nil {
		return err
	}
	p.publish(ctx, events.NewBaselineAdjusted(name, cat, delta))
	return nil
}

func (p *PublishingStore) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	ref, err := p.Store.AppendExpense(ctx, e)
	if err != nil {
		return "", err
	}
	p.publish(ctx, events.NewExpenseRecorded(e, ref))
	return ref, nil
}

func (p *PublishingStore) publish(ctx context.Context, ev events.LedgerEvent) {
	if err := p.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish ledger event",
			applog.FieldError, err,
			applog.FieldEventID, ev.ID,
			applog.FieldEventType, ev.Type,
			applog.FieldUsername, ev.Username)
	}
}
