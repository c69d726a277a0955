package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"frauddet/backend/services/prediction-stream/internal/models"
)

// ErrNotFound is returned when no prediction is cached for a session.
var ErrNotFound = errors.New("redisstore: not found")

// Store caches the latest prediction of each session.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(sessionID string) string {
	return fmt.Sprintf("predictions:latest:%s", sessionID)
}

func (s *Store) counterKey(source models.Source) string {
	return fmt.Sprintf("predictions:count:%s", source)
}

// Name identifies the sink.
func (s *Store) Name() string {
	return "redis"
}

// Write caches the record and bumps the per-source counter.
func (s *Store) Write(ctx context.Context, rec models.PredictionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(rec.SessionID), data, s.ttl)
	pipe.Incr(ctx, s.counterKey(rec.Source))
	_, err = pipe.Exec(ctx)
	return err
}

// Latest returns the cached prediction of a session.
func (s *Store) Latest(ctx context.Context, sessionID string) (*models.PredictionRecord, error) {
	result, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec models.PredictionRecord
	if err := json.Unmarshal([]byte(result), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Count returns how many predictions of a source were recorded.
func (s *Store) Count(ctx context.Context, source models.Source) (int64, error) {
	n, err := s.client.Get(ctx, s.counterKey(source)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
