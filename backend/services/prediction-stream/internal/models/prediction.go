package models

import (
	"encoding/json"
	"math"
	"time"
)

// Predictions is the bundle of classifier decisions for one transaction.
type Predictions struct {
	Logistic     int     `json:"logistic"`
	RandomForest int     `json:"random_forest"`
	XGBoost      int     `json:"xgboost"`
	FraudScore   float64 `json:"fraud_score"`
}

// Source tells where a prediction came from.
type Source string

const (
	SourcePeriodic Source = "periodic"
	SourceRequest  Source = "request"
)

// ConnectedMessage is sent once when a session opens.
type ConnectedMessage struct {
	Message string `json:"message"`
}

// PredictionMessage carries predictions and the scored transaction.
// Transaction is raw so that client-supplied payloads are echoed verbatim.
type PredictionMessage struct {
	Predictions Predictions     `json:"predictions"`
	Transaction json.RawMessage `json:"transaction"`
}

// ErrorMessage reports a per-message failure to the client.
type ErrorMessage struct {
	Error string `json:"error"`
}

// InboundMessage is the client request envelope.
type InboundMessage struct {
	Transaction json.RawMessage `json:"transaction"`
}

// PredictionRecord is what gets handed to the recording sinks.
type PredictionRecord struct {
	SessionID     string          `json:"session_id"`
	Source        Source          `json:"source"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Predictions   Predictions     `json:"predictions"`
	Transaction   json.RawMessage `json:"transaction"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
