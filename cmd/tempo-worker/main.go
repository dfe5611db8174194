package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"tempo/internal/amqp"
	"tempo/internal/cli"
	tlog "tempo/internal/log"
	"tempo/internal/sheets"
	gsheet "tempo/internal/sheets/google"
	sheetmem "tempo/internal/sheets/memory"
	"tempo/internal/storage"
	"tempo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(tlog.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting tempo-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != "sqlite" {
		logger.Error("The export worker requires DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var sheet sheets.RowAppender
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		sheet = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		sheet = sheetmem.New()
		logger.Info("Google Sheets disabled, exporting to memory - no GOOGLE_SPREADSHEET_ID provided")
	}

	exporter := worker.NewExportWorker(repo, sheet, cfg.ExportBatchSize, loc)

	logger.Info("Performing startup export check...")
	if err := exporter.StartupExportCheck(ctx); err != nil {
		logger.Error("Failed startup export check", "error", err)
	}

	scheduler := worker.NewScheduler(loc)
	if _, err := scheduler.ScheduleReconcile(ctx, cfg.ExportSchedule, exporter); err != nil {
		logger.Error("Failed to schedule export reconcile", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			return client.ConsumeChanges(gctx, exporter.HandleChangeMessage)
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
	}
	logger.Info("Shutting down worker...")
}
