package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"incomeledger/internal/amqp"
	"incomeledger/internal/config"
	gsheet "incomeledger/internal/sheets/google"
	"incomeledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting ledger-worker")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Google Sheets client for the statement journal (optional)
	var statementWorker *worker.StatementWorker
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		statementWorker = worker.NewStatementWorker(sheetsClient)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		statementWorker = worker.NewStatementWorker(nil)
	}

	// Initialize AMQP client for consuming transaction events
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	g, gctx := errgroup.WithContext(ctx)

	// Consume until the context is cancelled. A broken broker connection
	// surfaces as a consume error; retry after a pause instead of exiting.
	g.Go(func() error {
		for {
			err := amqpClient.ConsumeTransactionEvents(gctx, statementWorker.HandleTransactionEvent)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("Event consumption failed, retrying",
				"error", err, "retry_in", cfg.ConsumeRetryInterval)

			select {
			case <-gctx.Done():
				return nil
			case <-time.After(cfg.ConsumeRetryInterval):
			}
		}
	})

	logger.Info("Ledger-worker consuming transaction events",
		"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Ledger-worker shutdown complete")
}
