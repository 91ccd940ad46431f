package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/suPer8Hu/csv-agent/internal/ai"
	"github.com/suPer8Hu/csv-agent/internal/common"
)

const DefaultSessionID = "default"

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrJobsDisabled = errors.New("async jobs are not configured")
)

// Responder answers one turn given prior history. *agent.Agent implements it.
type Responder interface {
	Respond(ctx context.Context, history []ai.Message, input string) (string, error)
}

type Service struct {
	store             HistoryStore
	jobs              *Repo
	responder         Responder
	contextWindowSize int
	logger            *slog.Logger
}

// NewService wires the turn service. jobs may be nil when async jobs are
// disabled. contextWindowSize <= 0 sends the full history to the model.
func NewService(store HistoryStore, jobs *Repo, responder Responder, contextWindowSize int, logger *slog.Logger) *Service {
	if contextWindowSize < 0 || contextWindowSize > 1000 {
		contextWindowSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:             store,
		jobs:              jobs,
		responder:         responder,
		contextWindowSize: contextWindowSize,
		logger:            logger,
	}
}

func NormalizeSessionID(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}

// SendMessage runs one turn and, only when it succeeds, appends the user
// message and the answer to the session history.
func (s *Service) SendMessage(ctx context.Context, sessionID string, content string) (reply string, history []ai.Message, err error) {
	if strings.TrimSpace(content) == "" {
		return "", nil, ErrEmptyMessage
	}
	sessionID = NormalizeSessionID(sessionID)

	prior, err := s.store.History(ctx, sessionID, s.contextWindowSize)
	if err != nil {
		return "", nil, err
	}

	reply, err = s.responder.Respond(ctx, prior, content)
	if err != nil {
		s.logger.WarnContext(ctx, "turn failed", slog.String("session_id", sessionID), slog.Any("err", err))
		return "", nil, err
	}

	if err := s.store.Append(ctx, sessionID,
		ai.Message{Role: ai.RoleUser, Content: content},
		ai.Message{Role: ai.RoleAssistant, Content: reply},
	); err != nil {
		return "", nil, err
	}

	history, err = s.store.History(ctx, sessionID, 0)
	if err != nil {
		return "", nil, err
	}
	return reply, history, nil
}

func (s *Service) History(ctx context.Context, sessionID string) ([]ai.Message, error) {
	return s.store.History(ctx, NormalizeSessionID(sessionID), 0)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	sessionID = NormalizeSessionID(sessionID)
	s.logger.InfoContext(ctx, "session cleared", slog.String("session_id", sessionID))
	return s.store.Clear(ctx, sessionID)
}

func (s *Service) JobsEnabled() bool { return s.jobs != nil }

// SubmitJob records a queued turn. With a non-empty idempotency key a
// repeated submission returns the existing job and created=false.
func (s *Service) SubmitJob(ctx context.Context, sessionID, content string, idempotencyKey *string) (job *Job, created bool, err error) {
	if s.jobs == nil {
		return nil, false, ErrJobsDisabled
	}
	if strings.TrimSpace(content) == "" {
		return nil, false, ErrEmptyMessage
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	j := &Job{
		ID:             jobID,
		SessionID:      NormalizeSessionID(sessionID),
		Prompt:         content,
		IdempotencyKey: idempotencyKey,
		Status:         JobQueued,
	}
	return s.jobs.CreateJobOrGetExisting(ctx, j)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	if s.jobs == nil {
		return nil, ErrJobsDisabled
	}
	return s.jobs.GetJobByID(ctx, jobID)
}

// RunJob executes a queued job's turn and records the outcome on the job.
// The returned error is the turn error, after it has been recorded.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	if s.jobs == nil {
		return ErrJobsDisabled
	}
	if err := s.jobs.UpdateJobStatusRunning(ctx, jobID); err != nil {
		s.logger.WarnContext(ctx, "mark job running failed", slog.String("job_id", jobID), slog.Any("err", err))
	}

	j, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == JobSucceeded {
		return nil
	}

	reply, _, err := s.SendMessage(ctx, j.SessionID, j.Prompt)
	if err != nil {
		if markErr := s.jobs.MarkJobFailed(ctx, jobID, err.Error()); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}
	return s.jobs.MarkJobSucceeded(ctx, jobID, reply)
}
