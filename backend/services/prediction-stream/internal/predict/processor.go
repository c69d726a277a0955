package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"frauddet/backend/services/prediction-stream/internal/metrics"
	"frauddet/backend/services/prediction-stream/internal/models"
	"frauddet/backend/services/prediction-stream/internal/scorer"
)

// ConnectedText is the confirmation sent when a session opens.
const ConnectedText = "Connected to WebSocket"

// ErrMalformedInput is reported when an inbound frame cannot be used.
var ErrMalformedInput = errors.New("malformed input")

// Generator produces synthetic transactions.
type Generator interface {
	Generate() models.Transaction
}

// Scorer maps signals to predictions.
type Scorer interface {
	Score(signals models.Signals) models.Predictions
}

// Recorder accepts prediction records. It must not block.
type Recorder interface {
	Record(rec models.PredictionRecord)
}

// Processor builds every frame a session sends.
type Processor struct {
	generator Generator
	scorer    Scorer
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewProcessor builds Processor. recorder may be nil.
func NewProcessor(generator Generator, scorer Scorer, recorder Recorder, logger *zap.Logger) *Processor {
	return &Processor{
		generator: generator,
		scorer:    scorer,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Connected returns the confirmation frame.
func (p *Processor) Connected() ([]byte, error) {
	return json.Marshal(models.ConnectedMessage{Message: ConnectedText})
}

// Next generates and scores a transaction and returns the periodic prediction frame.
func (p *Processor) Next(ctx context.Context, sessionID string) ([]byte, error) {
	tx := p.generator.Generate()
	predictions := p.scorer.Score(tx.Signals())

	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}

	return p.respond(sessionID, models.SourcePeriodic, tx.ID, predictions, raw)
}

// Process handles one inbound frame. It returns a nil frame when nothing
// should be sent back. Per-message failures become error frames, not errors.
func (p *Processor) Process(ctx context.Context, sessionID string, raw []byte) ([]byte, error) {
	if ce := p.logger.Check(zap.DebugLevel, "received message"); ce != nil {
		ce.Write(zap.String("session_id", sessionID), zap.ByteString("frame", raw))
	}

	// The transaction is echoed in a text frame, which must be UTF-8.
	if !utf8.Valid(raw) {
		return p.fail(sessionID, fmt.Errorf("%w: frame is not valid UTF-8", ErrMalformedInput))
	}

	txRaw, err := parseInbound(raw)
	if err != nil {
		return p.fail(sessionID, err)
	}
	if txRaw == nil {
		return nil, nil
	}

	signals, err := scorer.Decode(txRaw)
	if err != nil {
		return p.fail(sessionID, fmt.Errorf("%w: %w", ErrMalformedInput, err))
	}

	return p.respond(sessionID, models.SourceRequest, transactionID(txRaw), p.scorer.Score(signals), txRaw)
}

func (p *Processor) respond(sessionID string, source models.Source, txID string, predictions models.Predictions, txRaw json.RawMessage) ([]byte, error) {
	frame, err := json.Marshal(models.PredictionMessage{Predictions: predictions, Transaction: txRaw})
	if err != nil {
		return nil, fmt.Errorf("encode prediction: %w", err)
	}

	observe(source, predictions)
	if p.recorder != nil {
		p.recorder.Record(models.PredictionRecord{
			SessionID:     sessionID,
			Source:        source,
			TransactionID: txID,
			Predictions:   predictions,
			Transaction:   txRaw,
			CreatedAt:     p.now().UTC(),
		})
	}
	return frame, nil
}

func (p *Processor) fail(sessionID string, err error) ([]byte, error) {
	p.logger.Warn("failed to process message", zap.String("session_id", sessionID), zap.Error(err))
	metrics.InboundErrorsTotal.Inc()
	return json.Marshal(models.ErrorMessage{Error: err.Error()})
}

// parseInbound returns the transaction payload, or nil when the frame has none.
func parseInbound(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedInput)
	}

	var msg models.InboundMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(msg.Transaction) == 0 || bytes.Equal(msg.Transaction, []byte("null")) {
		return nil, nil
	}
	return msg.Transaction, nil
}

func transactionID(txRaw json.RawMessage) string {
	var ident struct {
		ID string `json:"transaction_id"`
	}
	_ = json.Unmarshal(txRaw, &ident)
	return ident.ID
}

func observe(source models.Source, predictions models.Predictions) {
	metrics.PredictionsTotal.WithLabelValues(string(source)).Inc()
	if predictions.Logistic == 1 {
		metrics.FraudFlagsTotal.WithLabelValues("logistic").Inc()
	}
	if predictions.RandomForest == 1 {
		metrics.FraudFlagsTotal.WithLabelValues("random_forest").Inc()
	}
	if predictions.XGBoost == 1 {
		metrics.FraudFlagsTotal.WithLabelValues("xgboost").Inc()
	}
}
