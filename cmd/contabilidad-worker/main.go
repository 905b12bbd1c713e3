package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"contabilidad/internal/amqp"
	"contabilidad/internal/backend"
	"contabilidad/internal/cli"
	"contabilidad/internal/log"
	"contabilidad/internal/services"
	"contabilidad/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting contabilidad-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the sync worker", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	ctx = log.NewContext(ctx, logger)

	targetCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend", log.FieldError, err)
		os.Exit(1)
	}
	target, err := backend.NewFactory(logger).CreateTarget(ctx, targetCfg)
	if err != nil {
		logger.Error("Failed to create export target", log.FieldError, err, "backend", targetCfg.Type)
		os.Exit(1)
	}
	if target.Cleanup != nil {
		defer target.Cleanup()
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	syncWorker := worker.NewSyncWorker(services.NewLedgerService(repo, nil), target.Target)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeDayChanged(gctx, syncWorker.HandleDayChanged)
	})
	logger.Info("Sync worker running", "backend", targetCfg.Type, "queue", cfg.AMQPQueue)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
