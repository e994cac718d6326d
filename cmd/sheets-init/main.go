// Command sheets-init prepares a spreadsheet for the sheets backend: it
// creates the users and expenses tabs with their header rows and, with
// -seed, copies every record from DATA_BACKEND into it.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"studentbudget/internal/backend"
	"studentbudget/internal/cli"
	applog "studentbudget/internal/log"
	"studentbudget/internal/sheets"
	"studentbudget/internal/worker"
)

func main() {
	seed := flag.Bool("seed", false, "copy users and expenses from DATA_BACKEND into the spreadsheet")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentSheets)
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		UsersSheet:      cfg.GoogleUsersSheet,
		ExpensesSheet:   cfg.GoogleExpensesSheet,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	created, err := client.EnsureTabs(ctx)
	if err != nil {
		logger.Error("Failed to prepare spreadsheet", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Spreadsheet ready", "created_tabs", created)

	if !*seed {
		return
	}
	if cfg.DataBackend == string(backend.SheetsBackend) {
		logger.Error("-seed needs a DATA_BACKEND other than sheets")
		os.Exit(1)
	}
	sourceCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	source, err := backend.NewFactory(logger).CreateBackend(ctx, sourceCfg)
	if err != nil {
		logger.Error("Failed to open source backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer source.Close()

	report, err := worker.NewMirrorWorker(source.Store, client, logger).Reconcile(ctx)
	if err != nil {
		logger.Error("Seeding failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Seeded spreadsheet",
		applog.FieldBackend, cfg.DataBackend,
		"users_copied", report.UsersCopied,
		"expenses_copied", report.ExpensesCopied)
}
