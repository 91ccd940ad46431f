package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/csv-agent/internal/app"
	"github.com/suPer8Hu/csv-agent/internal/config"
	"github.com/suPer8Hu/csv-agent/internal/httpapi"
	"github.com/suPer8Hu/csv-agent/internal/httpapi/handlers"
	"github.com/suPer8Hu/csv-agent/internal/logging"
	"github.com/suPer8Hu/csv-agent/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, cfg.AsyncEnabled())
	if err != nil {
		logger.Error("startup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer a.Close()

	var pub handlers.JobPublisher
	if cfg.AsyncEnabled() {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logger.Error("rabbit publisher", slog.Any("err", err))
			os.Exit(1)
		}
		defer p.Close()
		pub = p

		// in-process consumer so memory-backed sessions can serve async turns
		if cfg.WorkerEmbedded {
			consumer := &rabbitmq.Consumer{
				URL:         cfg.RabbitURL,
				Queue:       cfg.RabbitQueue,
				Concurrency: cfg.WorkerConcurrency,
				Logger:      logging.NewComponentLogger(logger, "worker"),
			}
			go func() {
				if err := consumer.Run(ctx, a.ChatSvc.RunJob); err != nil {
					logger.Error("embedded worker stopped", slog.Any("err", err))
				}
			}()
		}
	}

	httpLogger := logging.NewComponentLogger(logger, "http")
	h := handlers.NewHandler(a.ChatSvc, a.Provider, pub, httpLogger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, httpLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", slog.String("addr", cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}
