package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"frauddet/backend/services/prediction-stream/internal/models"
)

// PredictionLogRepository stores every prediction sent to clients.
type PredictionLogRepository struct {
	db *sql.DB
}

// NewPredictionLogRepository ctor.
func NewPredictionLogRepository(db *sql.DB) *PredictionLogRepository {
	return &PredictionLogRepository{db: db}
}

// Name identifies the sink.
func (r *PredictionLogRepository) Name() string {
	return "postgres"
}

// Write stores log entry.
func (r *PredictionLogRepository) Write(ctx context.Context, rec models.PredictionRecord) error {
	const query = `
		INSERT INTO prediction_log (session_id, source, transaction_id, logistic, random_forest, xgboost, fraud_score, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID,
		string(rec.Source),
		nullString(rec.TransactionID),
		rec.Predictions.Logistic,
		rec.Predictions.RandomForest,
		rec.Predictions.XGBoost,
		rec.Predictions.FraudScore,
		[]byte(rec.Transaction),
		rec.CreatedAt,
	)
	return err
}

// ListBySession returns the latest records of a session, newest first.
func (r *PredictionLogRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.PredictionRecord, error) {
	const query = `
		SELECT session_id, source, COALESCE(transaction_id, ''), logistic, random_forest, xgboost, fraud_score, payload, created_at
		FROM prediction_log
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.PredictionRecord, 0)
	for rows.Next() {
		var (
			rec     models.PredictionRecord
			source  string
			payload []byte
		)
		if err := rows.Scan(
			&rec.SessionID,
			&source,
			&rec.TransactionID,
			&rec.Predictions.Logistic,
			&rec.Predictions.RandomForest,
			&rec.Predictions.XGBoost,
			&rec.Predictions.FraudScore,
			&payload,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan prediction log: %w", err)
		}
		rec.Source = models.Source(source)
		rec.Transaction = json.RawMessage(payload)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
