package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"

	applog "studentbudget/internal/log"
)

// Reconciler is the job run on every scheduler tick.
type Reconciler interface {
	Reconcile(ctx context.Context) (ReconcileReport, error)
}

// Scheduler runs reconciliation on a cron schedule ("@every 5m",
// "*/10 * * * *"). A tick that fires while the previous one still runs is
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	job    Reconciler
	logger *applog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(spec string, job Reconciler, logger *applog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		job:    job,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the cron loop. Jobs run with a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler is already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.cron.Start()
	s.logger.InfoContext(ctx, "Reconciliation scheduler started", "entries", len(s.cron.Entries()))
	return nil
}

// Stop halts the schedule and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	cancel()
	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Reconciliation scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Reconciliation scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if _, err := s.job.Reconcile(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled reconciliation failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpReconcile)
	}
}

// RunNow runs one reconciliation synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (ReconcileReport, error) {
	return s.job.Reconcile(ctx)
}
