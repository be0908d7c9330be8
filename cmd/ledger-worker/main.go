package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"ledger/internal/cli"
	applog "ledger/internal/log"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/sheets/memory"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).
		WithComponent(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting ledger-worker", applog.FieldOperation, applog.OpStartup, "journal", cfg.JournalBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := cli.OpenStore(ctx, logger, cfg)
	defer repo.Close()

	client := cli.ConnectAMQP(logger, cfg, true)
	defer client.Close()

	var journal sheets.JournalWriter
	switch cfg.JournalBackend {
	case "sheets":
		gs, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleJournalSheet)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets journal", applog.FieldError, err)
			os.Exit(1)
		}
		journal = gs
		logger.Info("Google Sheets journal initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleJournalSheet)
	default:
		journal = memory.New()
		logger.Info("In-memory journal initialized")
	}

	jw := worker.NewJournalWorker(repo, journal)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return jw.Run(gctx, client)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
