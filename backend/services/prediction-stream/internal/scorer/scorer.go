// Package scorer turns transaction signals into classifier decisions and a
// fraud score. It stands in for real model inference.
package scorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"frauddet/backend/services/prediction-stream/internal/models"
	"frauddet/backend/services/prediction-stream/internal/random"
)

// ErrMalformedTransaction is returned when a supplied transaction is not a JSON
// object or carries a signal field of the wrong type.
var ErrMalformedTransaction = errors.New("malformed transaction")

// Score contributions and decision thresholds, in hundredths.
const (
	v1Points     = 30
	v3Points     = 20
	amountPoints = 20

	logisticThreshold     = 50
	randomForestThreshold = 60
	xgboostThreshold      = 70

	signalCutoff = -5.0
	amountCutoff = 1000.0

	maxNoise = 0.3
	maxScore = 0.99
)

// Scorer computes predictions from signals plus a random component.
type Scorer struct {
	src random.Source
}

// New returns a scorer drawing its noise from src.
func New(src random.Source) *Scorer {
	return &Scorer{src: src}
}

// Score returns the prediction bundle. Absent signals add nothing.
func (s *Scorer) Score(signals models.Signals) models.Predictions {
	base := 0
	if signals.V1 != nil && *signals.V1 < signalCutoff {
		base += v1Points
	}
	if signals.V3 != nil && *signals.V3 < signalCutoff {
		base += v3Points
	}
	if signals.Amount != nil && *signals.Amount > amountCutoff {
		base += amountPoints
	}

	// noise is in (0, maxNoise]
	noise := maxNoise * (1 - s.src.Float64())

	return models.Predictions{
		Logistic:     above(base, noise, logisticThreshold),
		RandomForest: above(base, noise, randomForestThreshold),
		XGBoost:      above(base, noise, xgboostThreshold),
		FraudScore:   math.Min(models.RoundTo(float64(base)/100+noise, 2), maxScore),
	}
}

// above reports base/100 + noise > threshold/100 without summing floats, so
// the boundaries are exact.
func above(base int, noise float64, threshold int) int {
	if noise > float64(threshold-base)/100 {
		return 1
	}
	return 0
}

// Decode extracts signals from a client-supplied transaction.
func Decode(raw json.RawMessage) (models.Signals, error) {
	var signals models.Signals
	if err := json.Unmarshal(raw, &signals); err != nil {
		return models.Signals{}, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	return signals, nil
}
