// Package metrics defines the Prometheus metric collectors used by the search
// and indexing services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	IndexFlushesTotal    *prometheus.CounterVec
	ShardDocCount        *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec

	DependencePassesTotal    *prometheus.CounterVec
	DependencePassDuration   *prometheus.HistogramVec
	DependenceAlteredDocs    prometheus.Histogram
	DependenceNonFiniteTotal prometheus.Counter
}

// New creates all collectors and registers them on reg. A nil reg uses the
// global Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_flushes_total",
				Help: "Total index flush operations by status.",
			},
			[]string{"status"},
		),
		ShardDocCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shard_document_count",
				Help: "Number of documents per shard.",
			},
			[]string{"shard_id"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		DependencePassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dependence_passes_total",
				Help: "Dependence scoring passes by mode and outcome (skipped, partial, applied).",
			},
			[]string{"mode", "outcome"},
		),
		DependencePassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dependence_pass_duration_seconds",
				Help:    "Time spent re-scoring one result set with proximity evidence.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"mode"},
		),
		DependenceAlteredDocs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dependence_altered_documents",
				Help:    "Documents that received a dependence contribution per pass.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
		),
		DependenceNonFiniteTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dependence_nonfinite_total",
				Help: "Dependence contributions that were NaN or infinite.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.IndexFlushesTotal,
		m.ShardDocCount,
		m.CircuitBreakerState,
		m.DependencePassesTotal,
		m.DependencePassDuration,
		m.DependenceAlteredDocs,
		m.DependenceNonFiniteTotal,
	)

	return m
}

// RecordDependencePass updates the dependence collectors for one pass.
// Skipped passes touch no documents and are only counted.
func (m *Metrics) RecordDependencePass(mode, outcome string, altered, nonFinite int, elapsed time.Duration) {
	if mode == "" {
		mode = "unset"
	}
	m.DependencePassesTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == "skipped" {
		return
	}
	m.DependencePassDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	m.DependenceAlteredDocs.Observe(float64(altered))
	if nonFinite > 0 {
		m.DependenceNonFiniteTotal.Add(float64(nonFinite))
	}
}

// Handler returns the scrape handler for g, or the global registry when g
// is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
