package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
)

// PassEvent is the wire form of one dependence pass report. The searcher
// publishes it to Kafka; the analytics service aggregates and stores it.
type PassEvent struct {
	QueryID   string    `json:"query_id"`
	Outcome   string    `json:"outcome"`
	Mode      string    `json:"mode"`
	Terms     int       `json:"terms"`
	Documents int       `json:"documents"`
	Altered   int       `json:"altered"`
	NonFinite int       `json:"non_finite"`
	Error     string    `json:"error,omitempty"`
	LatencyUs int64     `json:"latency_us"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPassEvent(r dependence.Report, elapsed time.Duration, at time.Time) PassEvent {
	ev := PassEvent{
		QueryID:   r.QueryID,
		Outcome:   r.Outcome.String(),
		Mode:      string(r.Mode),
		Terms:     r.Terms,
		Documents: r.Documents,
		Altered:   r.Altered,
		NonFinite: r.NonFinite,
		LatencyUs: elapsed.Microseconds(),
		Timestamp: at.UTC(),
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	return ev
}

// OutcomeRow is one persisted (mode, outcome) group over a time range.
type OutcomeRow struct {
	Mode         string  `json:"mode"`
	Outcome      string  `json:"outcome"`
	Passes       int64   `json:"passes"`
	AvgAltered   float64 `json:"avg_altered"`
	AvgLatencyUs float64 `json:"avg_latency_us"`
}
