package redisstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frauddet/backend/services/prediction-stream/internal/models"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, ttl), mr
}

func TestStoreWriteAndLatest(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	first := models.PredictionRecord{
		SessionID:     "s1",
		Source:        models.SourcePeriodic,
		TransactionID: "tx-10001",
		Predictions:   models.Predictions{Logistic: 1, FraudScore: 0.75},
		Transaction:   json.RawMessage(`{"transaction_id":"tx-10001"}`),
		CreatedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	second := first
	second.Source = models.SourceRequest
	second.TransactionID = "tx-10002"
	second.Transaction = json.RawMessage(`{"transaction_id":"tx-10002"}`)

	require.NoError(t, store.Write(ctx, first))
	require.NoError(t, store.Write(ctx, second))

	got, err := store.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tx-10002", got.TransactionID)
	assert.Equal(t, models.SourceRequest, got.Source)
	assert.Equal(t, second.Predictions, got.Predictions)
	assert.JSONEq(t, string(second.Transaction), string(got.Transaction))
	assert.True(t, second.CreatedAt.Equal(got.CreatedAt))

	assert.Equal(t, time.Minute, mr.TTL("predictions:latest:s1"))

	periodic, err := store.Count(ctx, models.SourcePeriodic)
	require.NoError(t, err)
	assert.Equal(t, int64(1), periodic)
	requests, err := store.Count(ctx, models.SourceRequest)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests)
}

func TestStoreLatestExpires(t *testing.T) {
	store, mr := newTestStore(t, time.Second)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, models.PredictionRecord{SessionID: "s1", Source: models.SourcePeriodic, Transaction: json.RawMessage(`{}`)}))
	_, err := store.Latest(ctx, "s1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = store.Latest(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreEmpty(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	_, err := store.Latest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.Count(ctx, models.SourceRequest)
	require.NoError(t, err)
	assert.Zero(t, n)
}
