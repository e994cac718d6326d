package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"studentbudget/internal/amqp"
	"studentbudget/internal/backend"
	"studentbudget/internal/cli"
	applog "studentbudget/internal/log"
	"studentbudget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting budget-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	primaryCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	mirrorCfg, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", applog.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	primary, err := factory.CreateBackend(context.Background(), primaryCfg)
	if err != nil {
		logger.Error("Failed to create primary backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer primary.Close()
	mirror, err := factory.CreateBackend(context.Background(), mirrorCfg)
	if err != nil {
		logger.Error("Failed to create mirror backend", applog.FieldError, err, applog.FieldBackend, cfg.MirrorBackend)
		os.Exit(1)
	}
	defer mirror.Close()

	mirrorWorker := worker.NewMirrorWorker(primary.Store, mirror.Store, logger)
	scheduler, err := worker.NewScheduler(cfg.ReconcileSchedule, mirrorWorker, logger)
	if err != nil {
		logger.Error("Invalid reconcile schedule", applog.FieldError, err, "schedule", cfg.ReconcileSchedule)
		os.Exit(1)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - mirroring by reconciliation only")
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler stop error", applog.FieldError, err)
		}
	})

	// Catch up on anything written while the worker was down.
	logger.Info("Performing startup reconciliation", applog.FieldOperation, applog.OpReconcile)
	if report, err := scheduler.RunNow(ctx); err != nil {
		logger.Error("Startup reconciliation failed", applog.FieldError, err)
	} else {
		logger.Info("Startup reconciliation complete",
			"users_copied", report.UsersCopied,
			"baselines_fixed", report.BaselinesFixed,
			"expenses_copied", report.ExpensesCopied)
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.Consume(gctx, mirrorWorker.HandleEvent)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		_ = scheduler.Stop(context.Background())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
