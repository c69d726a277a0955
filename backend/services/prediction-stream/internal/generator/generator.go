package generator

import (
	"fmt"

	"frauddet/backend/services/prediction-stream/internal/models"
	"frauddet/backend/services/prediction-stream/internal/random"
)

// Domains of the generated fields.
const (
	MaxTime = 172800

	MinAmount      = 1.0
	MaxAmount      = 5000.0
	MinFraudAmount = 500.0

	MinFeature = -10.0
	MaxFeature = 10.0

	MinFraudV1 = -20.0
	MaxFraudV1 = -5.0
	MinFraudV3 = -15.0
	MaxFraudV3 = -2.0

	FraudRate = 0.10

	amountPlaces  = 2
	featurePlaces = 6
)

// Generator produces synthetic transactions.
type Generator struct {
	src random.Source
}

// New returns a generator drawing from src.
func New(src random.Source) *Generator {
	return &Generator{src: src}
}

// Generate returns a fresh transaction. About one in ten is made to look fraudulent.
func (g *Generator) Generate() models.Transaction {
	tx := models.Transaction{
		ID:     fmt.Sprintf("tx-%d", random.IntRange(g.src, 10000, 99999)),
		Time:   int64(random.IntRange(g.src, 0, MaxTime)),
		Amount: g.draw(MinAmount, MaxAmount, amountPlaces),
	}
	for i := range tx.Features {
		tx.Features[i] = g.draw(MinFeature, MaxFeature, featurePlaces)
	}

	if g.src.Float64() < FraudRate {
		tx.Features[0] = g.draw(MinFraudV1, MaxFraudV1, featurePlaces)
		tx.Features[2] = g.draw(MinFraudV3, MaxFraudV3, featurePlaces)
		tx.Amount = g.draw(MinFraudAmount, MaxAmount, amountPlaces)
	}

	return tx
}

func (g *Generator) draw(lo, hi float64, places int) float64 {
	return models.RoundTo(random.Uniform(g.src, lo, hi), places)
}
