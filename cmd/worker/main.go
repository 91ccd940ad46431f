package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/csv-agent/internal/app"
	"github.com/suPer8Hu/csv-agent/internal/config"
	"github.com/suPer8Hu/csv-agent/internal/logging"
	"github.com/suPer8Hu/csv-agent/internal/store/rabbitmq"
)

// The standalone worker only makes sense when sessions and jobs live in a
// shared store (SESSION_BACKEND=sql or redis, DB_DSN pointing at a real DB).
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.AsyncEnabled() {
		log.Fatalf("RABBIT_URL is required for the worker")
	}
	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if cfg.SessionBackend == config.BackendMemory {
		logger.Warn("memory session backend: history written by this worker is not visible to the API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("startup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer a.Close()

	consumer := &rabbitmq.Consumer{
		URL:         cfg.RabbitURL,
		Queue:       cfg.RabbitQueue,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logging.NewComponentLogger(logger, "worker"),
	}
	if err := consumer.Run(ctx, a.ChatSvc.RunJob); err != nil {
		logger.Error("worker stopped", slog.Any("err", err))
		a.Close()
		os.Exit(1)
	}
}
