package chat

import (
	"context"
	"sync"

	"github.com/suPer8Hu/csv-agent/internal/ai"
)

// HistoryStore maps a session id to its ordered (role, content) history.
// History returns at most limit of the most recent messages, oldest first;
// limit <= 0 returns everything. Unknown sessions have an empty history.
type HistoryStore interface {
	History(ctx context.Context, sessionID string, limit int) ([]ai.Message, error)
	Append(ctx context.Context, sessionID string, msgs ...ai.Message) error
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore keeps histories in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]ai.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]ai.Message)}
}

func (s *MemoryStore) History(ctx context.Context, sessionID string, limit int) ([]ai.Message, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]ai.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...ai.Message) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.sessions[sessionID] = append(s.sessions[sessionID], ai.Message{Role: m.Role, Content: m.Content})
	}
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		s.sessions[sessionID] = []ai.Message{}
	}
	return nil
}
