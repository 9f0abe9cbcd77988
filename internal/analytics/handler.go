package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
)

// PassHistory answers queries over persisted passes.
type PassHistory interface {
	OutcomeSummary(ctx context.Context, since time.Time) ([]OutcomeRow, error)
}

type Handler struct {
	aggregator *Aggregator
	history    PassHistory
	now        func() time.Time
	logger     *slog.Logger
}

// NewHandler serves live stats from aggregator and, when history is not
// nil, summaries of stored passes.
func NewHandler(aggregator *Aggregator, history PassHistory) *Handler {
	return &Handler{
		aggregator: aggregator,
		history:    history,
		now:        time.Now,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats handles GET /api/v1/analytics/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// Passes handles GET /api/v1/analytics/passes?window=1h.
func (h *Handler) Passes(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pass persistence is disabled"})
		return
	}
	window := time.Hour
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window must be a positive duration"})
			return
		}
		window = d
	}
	since := h.now().Add(-window)
	rows, err := h.history.OutcomeSummary(r.Context(), since)
	if err != nil {
		logger.ForRequest(r.Context(), h.logger).Error("outcome summary failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pass history unavailable"})
		return
	}
	if rows == nil {
		rows = []OutcomeRow{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"since":  since.UTC(),
		"groups": rows,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
