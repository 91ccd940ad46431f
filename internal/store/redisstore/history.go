package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/csv-agent/internal/ai"
)

const keyPrefix = "csvagent:history:"

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redis and verifies the connection. ttl > 0 expires idle
// sessions; zero keeps them until cleared.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Store{rdb: rdb, ttl: ttl}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func HistoryKey(sessionID string) string {
	return keyPrefix + sessionID
}

type entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]ai.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.rdb.LRange(ctx, HistoryKey(sessionID), start, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []ai.Message{}, nil
		}
		return nil, err
	}
	return decodeEntries(raw)
}

// Append pushes msgs in one MULTI/EXEC so a turn's pair stays adjacent.
func (s *Store) Append(ctx context.Context, sessionID string, msgs ...ai.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values, err := encodeEntries(msgs)
	if err != nil {
		return err
	}
	key := HistoryKey(sessionID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, HistoryKey(sessionID)).Err()
}

func encodeEntries(msgs []ai.Message) ([]any, error) {
	out := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(entry{Role: m.Role, Content: m.Content})
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}

func decodeEntries(raw []string) ([]ai.Message, error) {
	out := make([]ai.Message, 0, len(raw))
	for _, r := range raw {
		var e entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, err
		}
		out = append(out, ai.Message{Role: e.Role, Content: e.Content})
	}
	return out, nil
}
