package handlers

import (
	_ "embed"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/csv-agent/internal/agent"
	"github.com/suPer8Hu/csv-agent/internal/ai"
	"github.com/suPer8Hu/csv-agent/internal/chat"
	"github.com/suPer8Hu/csv-agent/internal/common"
	"github.com/suPer8Hu/csv-agent/internal/httpapi/middleware"
	"github.com/suPer8Hu/csv-agent/internal/table"
	"github.com/suPer8Hu/csv-agent/internal/tools"
	"gorm.io/gorm"
)

//go:embed static/index.html
var indexHTML []byte

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toEntries(msgs []ai.Message) []historyEntry {
	out := make([]historyEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

func (h *Handler) Index(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{
		"status":   "healthy",
		"provider": h.Provider,
		"model":    h.Model,
	})
}

type sendMessageReq struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (h *Handler) Chat(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sessionID := chat.NormalizeSessionID(req.SessionID)

	reply, history, err := h.ChatSvc.SendMessage(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		h.failTurn(c, "Chat", sessionID, err)
		return
	}

	common.OK(c, gin.H{
		"session_id": sessionID,
		"response":   reply,
		"history":    toEntries(history),
	})
}

type clearReq struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) Clear(c *gin.Context) {
	var req clearReq
	// an empty body clears the default session
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sessionID := chat.NormalizeSessionID(req.SessionID)

	if err := h.ChatSvc.Clear(c.Request.Context(), sessionID); err != nil {
		h.Logger.Error("[Clear] failed", slog.String("session_id", sessionID), slog.Any("err", err))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"status": "cleared", "session_id": sessionID})
}

// failTurn maps a turn error to an envelope: bad input 400, table or
// argument problems 422, model transport 502.
func (h *Handler) failTurn(c *gin.Context, op, sessionID string, err error) {
	var (
		colErr       *table.ColumnError
		argErr       *tools.ArgumentError
		transportErr *agent.TransportError
	)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10002, "message is empty")
	case errors.As(err, &colErr):
		common.Fail(c, http.StatusUnprocessableEntity, 42201, colErr.Error())
	case errors.As(err, &argErr):
		common.Fail(c, http.StatusUnprocessableEntity, 42202, argErr.Error())
	case errors.As(err, &transportErr):
		h.Logger.Warn("["+op+"] model call failed",
			slog.String("session_id", sessionID),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.Any("err", err))
		common.Fail(c, http.StatusBadGateway, 50201, "model provider unavailable")
	default:
		h.Logger.Error("["+op+"] failed",
			slog.String("session_id", sessionID),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.Any("err", err))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	if !h.asyncEnabled() {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async jobs are not configured")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// read idempotency key
	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	sessionID := chat.NormalizeSessionID(req.SessionID)
	j, created, err := h.ChatSvc.SubmitJob(c.Request.Context(), sessionID, req.Message, idempoKeyPtr)
	if err != nil {
		h.failTurn(c, "SendChatMessageAsync", sessionID, err)
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
			h.Logger.Error("[SendChatMessageAsync] PublishJob failed",
				slog.String("session_id", sessionID), slog.String("job_id", j.ID), slog.Any("err", err))
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID, "session_id": j.SessionID, "created": created})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	if !h.ChatSvc.JobsEnabled() {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async jobs are not configured")
		return
	}
	jobID := strings.TrimSpace(c.Param("job_id"))
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		h.Logger.Error("[GetChatJob] failed", slog.String("job_id", jobID), slog.Any("err", err))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":         j.ID,
			"session_id": j.SessionID,
			"status":     j.Status,
			"reply":      j.Reply,
			"error":      j.Error,
			"created_at": j.CreatedAt,
			"updated_at": j.UpdatedAt,
		},
	})
}
