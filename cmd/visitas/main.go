package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"visitas/internal/amqp"
	"visitas/internal/cli"
	apphttp "visitas/internal/http"
	applog "visitas/internal/log"
	"visitas/internal/visits"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	backend, closeBackend := cli.InitBackend(ctx, logger, cfg)
	defer closeBackend()

	// The broker is optional for the API server: without it visits are still
	// created and finalized, there are just no events and no queued reports.
	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEventsQueue, cfg.AMQPSummaryQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without events", "error", err)
		} else {
			broker = client
			defer broker.Close()
		}
	}

	opts := []visits.Option{visits.WithLocation(cfg.Location())}
	if broker != nil {
		opts = append(opts, visits.WithEvents(broker))
	}
	store := visits.NewStore(backend, opts...)

	if err := store.Refresh(ctx); err != nil {
		logger.Error("Initial refresh failed", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var requester apphttp.SummaryRequester
	if broker != nil {
		requester = broker
	}
	srv := apphttp.NewServer(":"+cfg.Port, store, requester, cfg.Location(), applog.New(applog.DefaultConfig()))

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting visitas server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
