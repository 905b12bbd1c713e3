package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"contabilidad/internal/amqp"
	"contabilidad/internal/auth"
	"contabilidad/internal/cli"
	apphttp "contabilidad/internal/http"
	"contabilidad/internal/log"
	"contabilidad/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Day changes go to the sync worker over AMQP when it is configured.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, day changes will not be exported", log.FieldError, err)
		} else {
			defer client.Close()
			events = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - day changes will not be exported")
	}

	ledger := services.NewLedgerService(repo, events)
	svc := apphttp.Services{
		Ledger:    ledger,
		Tags:      services.NewTagService(repo),
		Users:     services.NewUserService(repo),
		Reminders: services.NewReminderService(repo, ledger),
	}
	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RecentLimitMax:     cfg.RecentLimitMax,
		SearchLimitMax:     cfg.SearchLimitMax,
	}, svc, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), repo, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting contabilidad server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
