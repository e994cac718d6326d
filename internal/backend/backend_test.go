package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"studentbudget/internal/config"
	"studentbudget/internal/core"
	"studentbudget/internal/events"
	applog "studentbudget/internal/log"
	"studentbudget/internal/store"
	"studentbudget/internal/store/memory"
	"studentbudget/internal/store/storetest"
)

func TestFactory_CreateBackend(t *testing.T) {
	dir := t.TempDir()
	factory := NewFactory(applog.Discard())

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "csv", config: Config{Type: CSVBackend, DataDirectory: filepath.Join(dir, "csv")}},
		{name: "memory", config: Config{Type: MemoryBackend, DataDirectory: filepath.Join(dir, "mem")}},
		{name: "sqlite", config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "budget.db")}},
		{name: "invalid type", config: Config{Type: "excel"}, wantErr: true},
		{name: "csv without directory", config: Config{Type: CSVBackend}, wantErr: true},
		{name: "postgres without url", config: Config{Type: PostgresBackend}, wantErr: true},
		{name: "sheets without spreadsheet", config: Config{Type: SheetsBackend}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := factory.CreateBackend(context.Background(), tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer res.Close()
			users, err := res.Store.ListUsers(context.Background())
			if err != nil || len(users) != 0 {
				t.Fatalf("ListUsers() = %v, %v", users, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:   "sqlite",
		SQLiteDBPath:  "/tmp/b.db",
		DataDir:       "./data",
		MirrorBackend: "csv",
	}

	bc, err := FromAppConfig(cfg)
	if err != nil || bc.Type != SQLiteBackend || bc.SQLiteDBPath != "/tmp/b.db" {
		t.Fatalf("FromAppConfig() = %+v, %v", bc, err)
	}
	mc, err := MirrorFromAppConfig(cfg)
	if err != nil || mc.Type != CSVBackend || mc.DataDirectory != "./data" {
		t.Fatalf("MirrorFromAppConfig() = %+v, %v", mc, err)
	}

	cfg.MirrorBackend = ""
	if _, err := MirrorFromAppConfig(cfg); err == nil {
		t.Error("MirrorFromAppConfig() without MIRROR_BACKEND should fail")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "excel"}); err == nil {
		t.Error("FromAppConfig() with unknown backend should fail")
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != len(config.Backends) {
		t.Fatalf("GetBackendTypeStrings() = %v, want %v", got, config.Backends)
	}
	for i := range got {
		if got[i] != config.Backends[i] {
			t.Errorf("backend %d = %s, want %s", i, got[i], config.Backends[i])
		}
	}
}

func TestPublishingStoreConformance(t *testing.T) {
	storetest.Run(t, storetest.Factory{
		New: func(t *testing.T) store.Store {
			return WithEvents(memory.New(nil, nil), &events.Recorder{}, nil)
		},
	})
}

func TestPublishingStoreEmitsEvents(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	s := WithEvents(memory.New(nil, nil), rec, nil)

	a := storetest.Alice()
	if err := s.CreateUser(ctx, a, core.SeedExpenses(a, core.NewDate(2025, 5, 15))); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx, a, nil); !errors.Is(err, core.ErrUserExists) {
		t.Fatalf("duplicate CreateUser() error = %v", err)
	}
	e := core.Expense{Username: a.Name, Category: core.Groceries, Amount: decimal.NewFromInt(25), Date: core.NewDate(2025, 5, 16)}
	if _, err := s.AppendExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := s.AdjustBaseline(ctx, a.Name, core.Groceries, e.Amount); err != nil {
		t.Fatal(err)
	}
	if err := s.AdjustBaseline(ctx, "nobody", core.Groceries, e.Amount); err == nil {
		t.Fatal("AdjustBaseline() for unknown user should fail")
	}

	evs := rec.Events()
	want := []events.Type{events.UserRegistered, events.ExpenseRecorded, events.BaselineAdjusted}
	if len(evs) != len(want) {
		t.Fatalf("published %d events, want %d: %+v", len(evs), len(want), evs)
	}
	for i, ev := range evs {
		if ev.Type != want[i] {
			t.Errorf("event %d type = %s, want %s", i, ev.Type, want[i])
		}
	}
	if evs[1].Ref != "mem:4" {
		t.Errorf("expense event ref = %q, want mem:4", evs[1].Ref)
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, events.LedgerEvent) error {
	f.calls++
	return errors.New("broker down")
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &failingPublisher{}
	s := WithEvents(memory.New(nil, nil), pub, nil)
	e := core.Expense{Username: "u", Category: "Coffee", Amount: decimal.NewFromInt(3), Date: core.NewDate(2025, 1, 1)}
	if _, err := s.AppendExpense(context.Background(), e); err != nil {
		t.Fatalf("AppendExpense() error = %v", err)
	}
	if pub.calls != 1 {
		t.Errorf("publisher called %d times, want 1", pub.calls)
	}
}

func TestWithEventsNilPublisher(t *testing.T) {
	inner := memory.New(nil, nil)
	if got := WithEvents(inner, nil, nil); got != store.Store(inner) {
		t.Error("WithEvents(nil publisher) should return the store unchanged")
	}
}
