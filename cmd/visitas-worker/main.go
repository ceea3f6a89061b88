package main

import (
	"context"
	"errors"
	"os"
	"time"

	"visitas/internal/amqp"
	"visitas/internal/cli"
	"visitas/internal/notify"
	"visitas/internal/visits"
	"visitas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting visitas-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx := context.Background()
	backend, closeBackend := cli.InitBackend(ctx, logger, cfg)
	defer closeBackend()

	store := visits.NewStore(backend, visits.WithLocation(cfg.Location()))
	if err := store.Refresh(ctx); err != nil {
		logger.Error("Initial refresh failed", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	broker, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEventsQueue, cfg.AMQPSummaryQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer broker.Close()

	var sender notify.Sender
	if cfg.WhatsAppConfigured() {
		sender = notify.NewWhatsAppSender(cfg.WhatsAppPhoneID, cfg.WhatsAppToken)
		logger.Info("WhatsApp reporting enabled", "recipient", cfg.ReportRecipient)
	} else {
		sender = notify.LogSender{}
		logger.Info("WhatsApp not configured, reports go to the log")
	}

	summaryWorker := worker.NewSummaryWorker(store, sender, cfg.ReportRecipient, cfg.Location(), cfg.SummaryCheckInterval)

	runCtx, cancel := context.WithCancel(ctx)
	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, cancel)

	if err := summaryWorker.Run(runCtx, broker); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		cancel()
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker stopped gracefully")
}
