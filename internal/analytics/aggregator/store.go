// Package aggregator persists dependence pass events and periodic snapshots
// of the aggregated stats in PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/resilience"
)

// Schema creates the tables the Store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS dependence_passes (
    id          BIGSERIAL PRIMARY KEY,
    query_id    TEXT NOT NULL DEFAULT '',
    mode        TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    terms       INT NOT NULL,
    documents   INT NOT NULL,
    altered     INT NOT NULL,
    non_finite  INT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    latency_us  BIGINT NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS dependence_passes_query_id
    ON dependence_passes (query_id) WHERE query_id <> '';
CREATE INDEX IF NOT EXISTS dependence_passes_recorded_at
    ON dependence_passes (recorded_at);
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const insertPass = `
INSERT INTO dependence_passes
    (query_id, mode, outcome, terms, documents, altered, non_finite, error, latency_us, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (query_id) WHERE query_id <> '' DO NOTHING`

// Store implements analytics.PassStore on PostgreSQL. Pass inserts are
// retried on transient errors; redelivered events are ignored.
type Store struct {
	db     *sql.DB
	retry  resilience.RetryConfig
	logger *slog.Logger
}

var _ analytics.PassStore = (*Store)(nil)

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db: db.DB,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
		},
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the tables and indexes if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, Schema); err != nil {
			return fmt.Errorf("creating analytics schema: %w", err)
		}
		return nil
	})
}

func (s *Store) SavePass(ctx context.Context, ev analytics.PassEvent) error {
	return resilience.Retry(ctx, "save-dependence-pass", s.retry, func() error {
		_, err := s.db.ExecContext(ctx, insertPass,
			ev.QueryID, ev.Mode, ev.Outcome, ev.Terms, ev.Documents,
			ev.Altered, ev.NonFinite, ev.Error, ev.LatencyUs, ev.Timestamp.UTC(),
		)
		if err != nil {
			err = fmt.Errorf("inserting pass %q: %w", ev.QueryID, err)
			if isPermanent(err) {
				return resilience.Permanent(err)
			}
			return err
		}
		return nil
	})
}

// isPermanent reports whether a Postgres error is one a retry cannot fix:
// data exceptions, integrity violations and syntax or access errors.
func isPermanent(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "22", "23", "42":
		return true
	}
	return false
}

// OutcomeSummary groups the passes recorded since the given time by mode
// and outcome.
func (s *Store) OutcomeSummary(ctx context.Context, since time.Time) ([]analytics.OutcomeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT mode, outcome, COUNT(*), COALESCE(AVG(altered), 0), COALESCE(AVG(latency_us), 0)
FROM dependence_passes
WHERE recorded_at >= $1
GROUP BY mode, outcome
ORDER BY mode, outcome`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying outcome summary: %w", err)
	}
	defer rows.Close()

	var result []analytics.OutcomeRow
	for rows.Next() {
		var r analytics.OutcomeRow
		if err := rows.Scan(&r.Mode, &r.Outcome, &r.Passes, &r.AvgAltered, &r.AvgLatencyUs); err != nil {
			return nil, fmt.Errorf("scanning outcome row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"total_passes", stats.TotalPasses,
		"altered_docs", stats.AlteredDocs,
	)
	return nil
}

// LatestSnapshot returns nil, nil if no snapshot exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave snapshots the aggregator every interval and once more
// when ctx is cancelled.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				cancel()
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
