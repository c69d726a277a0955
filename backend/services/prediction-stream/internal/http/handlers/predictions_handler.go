package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"frauddet/backend/services/prediction-stream/internal/models"
	redisstore "frauddet/backend/services/prediction-stream/internal/redis"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// LatestReader reads the cached prediction of a session.
type LatestReader interface {
	Latest(ctx context.Context, sessionID string) (*models.PredictionRecord, error)
}

// HistoryReader lists logged predictions of a session.
type HistoryReader interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.PredictionRecord, error)
}

// CountReader reads recorded prediction totals.
type CountReader interface {
	Count(ctx context.Context, source models.Source) (int64, error)
}

// NewLatestPredictionHandler returns GET /predictions/latest handler.
func NewLatestPredictionHandler(store LatestReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "prediction cache is not configured")
			return
		}
		sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}

		rec, err := store.Latest(r.Context(), sessionID)
		if errors.Is(err, redisstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no prediction for session")
			return
		}
		if err != nil {
			logger.Warn("failed to read latest prediction", zap.String("session_id", sessionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to read prediction")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// NewPredictionHistoryHandler returns GET /predictions/history handler.
func NewPredictionHistoryHandler(repo HistoryReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			writeError(w, http.StatusServiceUnavailable, "prediction log is not configured")
			return
		}
		query := r.URL.Query()
		sessionID := strings.TrimSpace(query.Get("session_id"))
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}

		limit := defaultHistoryLimit
		if raw := query.Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(parsed, maxHistoryLimit)
		}

		records, err := repo.ListBySession(r.Context(), sessionID, limit)
		if err != nil {
			logger.Warn("failed to list predictions", zap.String("session_id", sessionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list predictions")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"predictions": records,
		})
	}
}

// NewPredictionStatsHandler returns GET /predictions/stats handler.
func NewPredictionStatsHandler(counts CountReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if counts == nil {
			writeError(w, http.StatusServiceUnavailable, "prediction cache is not configured")
			return
		}

		totals := make(map[models.Source]int64, 2)
		for _, source := range []models.Source{models.SourcePeriodic, models.SourceRequest} {
			n, err := counts.Count(r.Context(), source)
			if err != nil {
				logger.Warn("failed to read prediction count", zap.String("source", string(source)), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to read prediction counts")
				return
			}
			totals[source] = n
		}
		writeJSON(w, http.StatusOK, totals)
	}
}
