package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/kafka"
)

// maxLatencies bounds the latency window kept for percentiles.
const maxLatencies = 10000

// AggregatedStats summarises the dependence passes seen since start-up.
type AggregatedStats struct {
	TotalPasses   int64                    `json:"total_passes"`
	ByMode        map[string]OutcomeCounts `json:"by_mode"`
	AlteredDocs   int64                    `json:"altered_docs"`
	NonFiniteDocs int64                    `json:"non_finite_docs"`
	AvgAltered    float64                  `json:"avg_altered_per_pass"`
	AvgLatencyUs  float64                  `json:"avg_latency_us"`
	P50LatencyUs  int64                    `json:"p50_latency_us"`
	P95LatencyUs  int64                    `json:"p95_latency_us"`
	P99LatencyUs  int64                    `json:"p99_latency_us"`
	TopErrors     []ErrorCount             `json:"top_errors"`
	PassesPerMin  float64                  `json:"passes_per_minute"`
	Since         time.Time                `json:"since"`
	Persisted     int64                    `json:"persisted"`
	PersistFailed int64                    `json:"persist_failed"`
}

// OutcomeCounts counts passes per outcome for one mode.
type OutcomeCounts struct {
	Applied int64 `json:"applied"`
	Partial int64 `json:"partial"`
	Skipped int64 `json:"skipped"`
}

type ErrorCount struct {
	Error string `json:"error"`
	Count int64  `json:"count"`
}

// PassStore persists pass events; *aggregator.Store implements it.
type PassStore interface {
	SavePass(ctx context.Context, ev PassEvent) error
}

// Aggregator keeps running totals over pass events. Safe for concurrent use.
type Aggregator struct {
	mu            sync.Mutex
	total         int64
	byMode        map[string]OutcomeCounts
	altered       int64
	nonFinite     int64
	latencies     []int64
	next          int
	errors        map[string]int64
	persisted     int64
	persistFailed int64
	startTime     time.Time

	store  PassStore
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. store may be nil.
func NewAggregator(store PassStore) *Aggregator {
	return &Aggregator{
		byMode:    make(map[string]OutcomeCounts),
		latencies: make([]int64, 0, 1024),
		errors:    make(map[string]int64),
		startTime: time.Now(),
		store:     store,
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes pass events from Kafka, persists them when a store is
// configured and then counts them. Undecodable messages are dropped. A
// store failure is returned so the consumer reports it, and the event is
// not counted.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[PassEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode pass event", "key", string(key), "error", err)
			return nil
		}
		if event.Outcome == "" {
			agg.logger.Warn("pass event without outcome dropped", "query_id", event.QueryID)
			return nil
		}
		if agg.store != nil {
			if err := agg.store.SavePass(ctx, event); err != nil {
				agg.mu.Lock()
				agg.persistFailed++
				agg.mu.Unlock()
				return fmt.Errorf("persisting pass %s: %w", event.QueryID, err)
			}
			agg.mu.Lock()
			agg.persisted++
			agg.mu.Unlock()
		}
		agg.Record(event)
		return nil
	}
}

// Record adds one event to the running totals.
func (a *Aggregator) Record(ev PassEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	counts := a.byMode[ev.Mode]
	switch ev.Outcome {
	case "applied":
		counts.Applied++
	case "partial":
		counts.Partial++
	default:
		counts.Skipped++
	}
	a.byMode[ev.Mode] = counts
	a.altered += int64(ev.Altered)
	a.nonFinite += int64(ev.NonFinite)
	if ev.Error != "" {
		a.errors[ev.Error]++
	}

	// ring buffer once full
	if len(a.latencies) < maxLatencies {
		a.latencies = append(a.latencies, ev.LatencyUs)
	} else {
		a.latencies[a.next] = ev.LatencyUs
		a.next = (a.next + 1) % maxLatencies
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalPasses:   a.total,
		ByMode:        make(map[string]OutcomeCounts, len(a.byMode)),
		AlteredDocs:   a.altered,
		NonFiniteDocs: a.nonFinite,
		TopErrors:     topN(a.errors, 10),
		Since:         a.startTime.UTC(),
		Persisted:     a.persisted,
		PersistFailed: a.persistFailed,
	}
	for mode, c := range a.byMode {
		if mode == "" {
			mode = "unset"
		}
		stats.ByMode[mode] = c
	}
	if a.total > 0 {
		stats.AvgAltered = float64(a.altered) / float64(a.total)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.PassesPerMin = float64(a.total) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []ErrorCount {
	result := make([]ErrorCount, 0, len(counts))
	for msg, count := range counts {
		result = append(result, ErrorCount{Error: msg, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Error < result[j].Error
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
