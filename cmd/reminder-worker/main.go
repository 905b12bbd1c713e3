package main

import (
	"context"
	"os"
	"time"

	"contabilidad/internal/cli"
	"contabilidad/internal/log"
	"contabilidad/internal/services"
	"contabilidad/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting reminder-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ledger := services.NewLedgerService(repo, nil)
	scheduler := worker.NewReminderScheduler(services.NewReminderService(repo, ledger), cfg.ReminderSchedule)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		scheduler.Stop()
	})
	ctx = log.NewContext(ctx, logger)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start reminder scheduler", log.FieldError, err, "schedule", cfg.ReminderSchedule)
		os.Exit(1)
	}
	logger.Info("Reminder scheduler running", "schedule", cfg.ReminderSchedule)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Reminder-worker shutdown complete")
}
