package main

import (
	"context"
	"errors"
	"os"
	"time"

	"campusbudget/internal/amqp"
	"campusbudget/internal/cli"
	"campusbudget/internal/engine"
	applog "campusbudget/internal/log"
	"campusbudget/internal/services"
	gsheet "campusbudget/internal/sheets/google"
	"campusbudget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting campusbudget worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	// The backend connects best effort; the worker cannot run without it.
	client := res.Publisher
	if client == nil {
		var err error
		if client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue); err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		res.Publisher = client
	}

	var exporter worker.ProgressExporter
	if cfg.GoogleSpreadsheetID != "" {
		sheets, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = sheets
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	reports := services.NewReportService(res.Store, engine.DashboardOptions{
		DefaultMonthlyLimit: cfg.MonthlyBudgetLimit(),
	})
	alerts := worker.NewBudgetAlertWorker(reports, exporter, cfg.BudgetAlertThreshold)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- client.ConsumeRecordEvents(ctx, alerts.HandleRecordEvent)
	}()

	logger.Info("Consuming record events",
		"queue", cfg.AMQPQueue,
		"threshold", cfg.BudgetAlertThreshold)

	select {
	case <-ctx.Done():
		cli.WaitForShutdown(ctx, done)
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Record event consumption failed", "error", err)
		}
	}
	logger.Info("Worker stopped")
}
