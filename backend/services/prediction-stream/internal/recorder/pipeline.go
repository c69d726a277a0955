// Package recorder ships prediction records to storage and messaging sinks
// off the session goroutines.
package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"frauddet/backend/services/prediction-stream/internal/metrics"
	"frauddet/backend/services/prediction-stream/internal/models"
)

const (
	defaultBufferSize = 256
	sinkTimeout       = 5 * time.Second
	drainTimeout      = 10 * time.Second
)

// Sink persists or publishes a prediction record.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec models.PredictionRecord) error
}

// Pipeline buffers records and fans them out to every sink.
type Pipeline struct {
	records chan models.PredictionRecord
	sinks   []Sink
	logger  *zap.Logger
}

// NewPipeline builds Pipeline. With no sinks, Record is a no-op.
func NewPipeline(bufferSize int, logger *zap.Logger, sinks ...Sink) *Pipeline {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Pipeline{
		records: make(chan models.PredictionRecord, bufferSize),
		sinks:   sinks,
		logger:  logger,
	}
}

// Sinks returns the configured sink names.
func (p *Pipeline) Sinks() []string {
	names := make([]string, 0, len(p.sinks))
	for _, sink := range p.sinks {
		names = append(names, sink.Name())
	}
	return names
}

// Record enqueues a record without blocking. Records are dropped when the buffer is full.
func (p *Pipeline) Record(rec models.PredictionRecord) {
	if len(p.sinks) == 0 {
		return
	}
	select {
	case p.records <- rec:
	default:
		metrics.RecorderDroppedTotal.Inc()
		p.logger.Warn("dropping prediction record, buffer full", zap.String("session_id", rec.SessionID))
	}
}

// Run delivers records until ctx is done, then flushes what is still buffered.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case rec := <-p.records:
			p.deliver(ctx, rec)
		}
	}
}

func (p *Pipeline) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-p.records:
			p.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (p *Pipeline) deliver(ctx context.Context, rec models.PredictionRecord) {
	for _, sink := range p.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := sink.Write(sinkCtx, rec)
		cancel()
		if err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
			p.logger.Warn("sink write failed", zap.String("sink", sink.Name()), zap.String("session_id", rec.SessionID), zap.Error(err))
		}
	}
}
