// Package app assembles the table, tools, model provider, agent and session
// service from configuration. Every binary starts here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/suPer8Hu/csv-agent/internal/agent"
	"github.com/suPer8Hu/csv-agent/internal/ai"
	"github.com/suPer8Hu/csv-agent/internal/chat"
	"github.com/suPer8Hu/csv-agent/internal/config"
	"github.com/suPer8Hu/csv-agent/internal/db"
	"github.com/suPer8Hu/csv-agent/internal/logging"
	"github.com/suPer8Hu/csv-agent/internal/store/redisstore"
	"github.com/suPer8Hu/csv-agent/internal/table"
	"github.com/suPer8Hu/csv-agent/internal/tools"
	"gorm.io/gorm"
)

type App struct {
	Cfg      config.Config
	Logger   *slog.Logger
	Table    *table.Table
	Provider ai.Provider
	Agent    *agent.Agent
	ChatSvc  *chat.Service

	closers []func() error
}

// NewProviderRegistry registers every supported model backend.
func NewProviderRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("missing OPENROUTER_API_KEY")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	return reg
}

// New loads the CSV and wires the turn path. With jobs set, a job repository
// is opened on DB_DRIVER/DB_DSN so the service can submit and run async turns.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, jobs bool) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t, err := table.Load(cfg.CSVPath)
	if err != nil {
		return nil, err
	}
	logging.NewComponentLogger(logger, "table").Info("csv loaded",
		slog.String("path", cfg.CSVPath), slog.Int("rows", t.Len()), slog.Int("columns", len(t.Columns())))

	provider, err := NewProviderRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}

	a := &App{Cfg: cfg, Logger: logger, Table: t, Provider: provider}

	executor := tools.NewExecutor(t, logging.NewComponentLogger(logger, "tools"))
	a.Agent = agent.New(provider, executor, cfg.SystemPrompt, logging.NewComponentLogger(logger, "agent"))

	var gdb *gorm.DB
	openDB := func() (*gorm.DB, error) {
		if gdb != nil {
			return gdb, nil
		}
		conn, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
		}
		if err := chat.NewRepo(conn).AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		gdb = conn
		if sqlDB, err := conn.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		return gdb, nil
	}

	var store chat.HistoryStore
	switch cfg.SessionBackend {
	case config.BackendSQL:
		conn, err := openDB()
		if err != nil {
			a.Close()
			return nil, err
		}
		store = chat.NewRepo(conn)
	case config.BackendRedis:
		rds, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisHistoryTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, rds.Close)
		store = rds
	default:
		store = chat.NewMemoryStore()
	}

	var repo *chat.Repo
	if jobs {
		conn, err := openDB()
		if err != nil {
			a.Close()
			return nil, err
		}
		repo = chat.NewRepo(conn)
	}

	a.ChatSvc = chat.NewService(store, repo, a.Agent, cfg.ChatContextWindowSize, logging.NewComponentLogger(logger, "chat"))

	logger.Info("app ready",
		slog.String("provider", provider.Name()),
		slog.String("model", provider.Model()),
		slog.String("session_backend", cfg.SessionBackend),
		slog.Bool("jobs", jobs))
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", slog.Any("err", err))
		}
	}
	a.closers = nil
}
