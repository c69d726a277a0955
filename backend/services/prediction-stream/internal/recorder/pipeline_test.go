package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"frauddet/backend/services/prediction-stream/internal/models"
)

type memorySink struct {
	name string
	err  error

	mu      sync.Mutex
	records []models.PredictionRecord
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Write(_ context.Context, rec models.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestPipelineFansOutToEverySink(t *testing.T) {
	ok := &memorySink{name: "ok"}
	failing := &memorySink{name: "failing", err: errors.New("down")}
	p := NewPipeline(8, zap.NewNop(), ok, failing)
	assert.Equal(t, []string{"ok", "failing"}, p.Sinks())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := 0; i < 5; i++ {
		p.Record(models.PredictionRecord{SessionID: "s", Source: models.SourcePeriodic})
	}

	require.Eventually(t, func() bool { return ok.count() == 5 && failing.count() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestPipelineDropsWhenFull(t *testing.T) {
	sink := &memorySink{name: "mem"}
	p := NewPipeline(2, zap.NewNop(), sink)

	for i := 0; i < 5; i++ {
		p.Record(models.PredictionRecord{SessionID: "s"})
	}
	assert.Len(t, p.records, 2)
}

func TestPipelineFlushesOnShutdown(t *testing.T) {
	sink := &memorySink{name: "mem"}
	p := NewPipeline(4, zap.NewNop(), sink)
	for i := 0; i < 3; i++ {
		p.Record(models.PredictionRecord{SessionID: "s"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 3, sink.count())
}

func TestPipelineWithoutSinks(t *testing.T) {
	p := NewPipeline(0, zap.NewNop())
	p.Record(models.PredictionRecord{SessionID: "s"})
	assert.Empty(t, p.records)
	assert.Equal(t, defaultBufferSize, cap(p.records))
}
