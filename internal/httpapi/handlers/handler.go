package handlers

import (
	"context"
	"log/slog"

	"github.com/suPer8Hu/csv-agent/internal/ai"
	"github.com/suPer8Hu/csv-agent/internal/chat"
)

// JobPublisher enqueues a job id for the worker. *rabbitmq.Publisher implements it.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	ChatSvc  *chat.Service
	Rabbit   JobPublisher
	Provider string
	Model    string
	Logger   *slog.Logger
}

// NewHandler builds the HTTP handlers. rabbit may be nil, which disables
// the async endpoints.
func NewHandler(svc *chat.Service, provider ai.Provider, rabbit JobPublisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ChatSvc:  svc,
		Rabbit:   rabbit,
		Provider: provider.Name(),
		Model:    provider.Model(),
		Logger:   logger,
	}
}

func (h *Handler) asyncEnabled() bool {
	return h.Rabbit != nil && h.ChatSvc.JobsEnabled()
}
