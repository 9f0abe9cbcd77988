// Package handler serves the search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/metrics"
)

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, opts executor.Options) (*executor.SearchResult, error)
}

// Handler serves /api/v1/search and the cache endpoints. cache, settings and
// metrics are optional.
type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	settings     dependence.SettingsSource
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(exec SearchExecutor, queryCache *cache.QueryCache, settings dependence.SettingsSource, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if maxResults < defaultLimit {
		maxResults = defaultLimit
	}
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		settings:     settings,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=&limit=&mode=. mode (SD or FD)
// overrides the configured dependence mode for this request.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.ForRequest(ctx, h.logger)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	opts := executor.Options{Limit: h.defaultLimit}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = min(parsed, h.maxResults)
	}
	if modeStr := r.URL.Query().Get("mode"); modeStr != "" {
		opts.Mode = dependence.ParseMode(modeStr)
		if !opts.Mode.Valid() {
			h.writeError(w, http.StatusBadRequest, "mode must be SD or FD")
			return
		}
	}
	if id, ok := logger.RequestID(ctx); ok {
		opts.QueryID = id
	}

	plan := parser.Parse(query)
	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	compute := func() (*executor.SearchResult, error) {
		return h.executor.Execute(ctx, plan, opts)
	}
	if h.cache != nil && len(plan.Terms) > 0 {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, h.cacheKey(plan, opts), compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("search execution failed", "query", query, "error", err, "status_code", status)
		h.observe("error", "", start, 0)
		h.writeError(w, status, "search failed")
		return
	}

	cacheStatus := "miss"
	resultType := "miss"
	if cacheHit {
		cacheStatus, resultType = "hit", "hit"
	}
	if len(result.Results) == 0 {
		resultType = "zero_result"
	}
	h.observe(resultType, cacheStatus, start, len(result.Results))
	if h.metrics != nil && h.cache != nil && len(plan.Terms) > 0 {
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}

	attrs := []any{
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if result.Dependence != nil {
		attrs = append(attrs, "dependence", result.Dependence.Outcome)
	}
	log.Info("search completed", attrs...)

	body, err := json.Marshal(result)
	if err != nil {
		log.Error("search result not encodable", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "result contains non-finite scores")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(append(body, '\n'))
}

// cacheKey folds the request's mode override into the settings fingerprint.
func (h *Handler) cacheKey(plan *parser.QueryPlan, opts executor.Options) cache.Key {
	s := dependence.DefaultSettings()
	if h.settings != nil {
		s = h.settings.Settings()
	}
	if opts.Mode != dependence.ModeUnset {
		s.Mode = opts.Mode
	}
	return cache.Key{Query: plan.String(), Limit: opts.Limit, Settings: s.Fingerprint()}
}

func (h *Handler) observe(resultType, cacheStatus string, start time.Time, results int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if cacheStatus != "" {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
		h.metrics.SearchResultsCount.Observe(float64(results))
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	s := h.cache.Stats()
	total := s.Hits + s.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":             s.Hits,
		"misses":           s.Misses,
		"bypassed":         s.Bypassed,
		"total":            total,
		"hit_rate":         fmt.Sprintf("%.1f%%", hitRate),
		"circuit":          s.Circuit,
		"circuit_failures": s.CircuitFailures,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.ForRequest(r.Context(), h.logger).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
