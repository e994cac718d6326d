package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"time"

	"studentbudget/internal/amqp"
	"studentbudget/internal/backend"
	"studentbudget/internal/cli"
	apphttp "studentbudget/internal/http"
	applog "studentbudget/internal/log"
	"studentbudget/internal/services"
	"studentbudget/internal/session"
	"studentbudget/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	var records store.Store = result.Store
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// The worker's reconciliation catches the mirror up later.
			logger.Warn("AMQP unavailable, ledger events disabled", applog.FieldError, err)
		} else {
			records = backend.WithEvents(records, amqpClient, logger)
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = randomSecret()
		logger.Warn("SESSION_SECRET not set, using a random secret; sessions end on restart")
	}
	codec, err := session.NewCodec(secret, cfg.SessionTTL, session.WithSecureCookie(cfg.CookieSecure))
	if err != nil {
		logger.Error("Failed to create session codec", applog.FieldError, err)
		os.Exit(1)
	}

	svc := services.NewBudgetService(records, services.Options{HashPasswords: cfg.UsesBcrypt()}, logger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Service:     svc,
		Store:       records,
		Sessions:    codec,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if err := result.Close(); err != nil {
			logger.Warn("Backend close error", applog.FieldError, err)
		}
	})

	logger.Info("Starting student budget server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"password_hashing", cfg.PasswordHashing,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return []byte(hex.EncodeToString(b))
}
