package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
)

type fakeTracker struct {
	keys   []string
	values []any
}

func (f *fakeTracker) Track(key string, value any) {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
}

type fakeStore struct {
	err   error
	saved []PassEvent
	rows  []OutcomeRow
	since time.Time
}

func (f *fakeStore) SavePass(_ context.Context, ev PassEvent) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, ev)
	return nil
}

func (f *fakeStore) OutcomeSummary(_ context.Context, since time.Time) ([]OutcomeRow, error) {
	f.since = since
	return f.rows, f.err
}

func TestPassObserverTracksEvent(t *testing.T) {
	tr := &fakeTracker{}
	obs := NewPassObserver(tr)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	obs.now = func() time.Time { return at }

	obs.ObserveDependencePass(dependence.Report{
		QueryID:   "q-1/shard-0",
		Outcome:   dependence.OutcomePartial,
		Mode:      dependence.ModeFull,
		Terms:     3,
		Documents: 10,
		Altered:   4,
		NonFinite: 1,
		Err:       errors.New("positions missing"),
	}, 1500*time.Microsecond)

	if len(tr.keys) != 1 || tr.keys[0] != "q-1/shard-0" {
		t.Fatalf("keys = %v", tr.keys)
	}
	ev := tr.values[0].(PassEvent)
	want := PassEvent{
		QueryID: "q-1/shard-0", Outcome: "partial", Mode: "FD",
		Terms: 3, Documents: 10, Altered: 4, NonFinite: 1,
		Error: "positions missing", LatencyUs: 1500, Timestamp: at,
	}
	if ev != want {
		t.Errorf("event = %+v\nwant    %+v", ev, want)
	}
}

func encode(t *testing.T, ev PassEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleEventAggregates(t *testing.T) {
	store := &fakeStore{}
	agg := NewAggregator(store)
	handle := HandleEvent(agg)
	ctx := context.Background()

	events := []PassEvent{
		{QueryID: "a", Mode: "SD", Outcome: "applied", Altered: 4, LatencyUs: 100},
		{QueryID: "b", Mode: "SD", Outcome: "skipped", LatencyUs: 10, Error: "fewer than two terms"},
		{QueryID: "c", Mode: "FD", Outcome: "partial", Altered: 2, NonFinite: 1, LatencyUs: 300, Error: "positions missing"},
		{QueryID: "d", Mode: "", Outcome: "skipped", LatencyUs: 5, Error: "fewer than two terms"},
	}
	for _, ev := range events {
		if err := handle(ctx, []byte(ev.QueryID), encode(t, ev)); err != nil {
			t.Fatal(err)
		}
	}
	if err := handle(ctx, nil, []byte("{not json")); err != nil {
		t.Errorf("garbage should be dropped, got %v", err)
	}
	if err := handle(ctx, nil, []byte(`{"query_id":"x"}`)); err != nil {
		t.Errorf("event without outcome should be dropped, got %v", err)
	}

	s := agg.Stats()
	if s.TotalPasses != 4 || s.Persisted != 4 || len(store.saved) != 4 {
		t.Fatalf("total=%d persisted=%d saved=%d", s.TotalPasses, s.Persisted, len(store.saved))
	}
	if got := s.ByMode["SD"]; got != (OutcomeCounts{Applied: 1, Skipped: 1}) {
		t.Errorf("SD counts = %+v", got)
	}
	if got := s.ByMode["FD"]; got != (OutcomeCounts{Partial: 1}) {
		t.Errorf("FD counts = %+v", got)
	}
	if got := s.ByMode["unset"]; got != (OutcomeCounts{Skipped: 1}) {
		t.Errorf("unset counts = %+v", got)
	}
	if s.AlteredDocs != 6 || s.NonFiniteDocs != 1 || s.AvgAltered != 1.5 {
		t.Errorf("altered=%d nonfinite=%d avg=%v", s.AlteredDocs, s.NonFiniteDocs, s.AvgAltered)
	}
	if len(s.TopErrors) != 2 || s.TopErrors[0] != (ErrorCount{Error: "fewer than two terms", Count: 2}) {
		t.Errorf("top errors = %+v", s.TopErrors)
	}
	if s.P50LatencyUs != 100 || s.P99LatencyUs != 300 || s.AvgLatencyUs != 103.75 {
		t.Errorf("latency p50=%d p99=%d avg=%v", s.P50LatencyUs, s.P99LatencyUs, s.AvgLatencyUs)
	}
}

func TestHandleEventStoreFailureIsNotCounted(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	agg := NewAggregator(store)
	err := HandleEvent(agg)(context.Background(), nil, encode(t, PassEvent{QueryID: "a", Mode: "SD", Outcome: "applied"}))
	if err == nil {
		t.Fatal("store failure must be reported")
	}
	s := agg.Stats()
	if s.TotalPasses != 0 || s.PersistFailed != 1 {
		t.Errorf("total=%d failed=%d", s.TotalPasses, s.PersistFailed)
	}
}

func TestLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 0; i < maxLatencies+5; i++ {
		agg.Record(PassEvent{Mode: "SD", Outcome: "applied", LatencyUs: int64(i)})
	}
	agg.mu.Lock()
	n := len(agg.latencies)
	first := agg.latencies[0]
	agg.mu.Unlock()
	if n != maxLatencies || first != maxLatencies {
		t.Errorf("window len=%d first=%d", n, first)
	}
}

func TestStatsEndpoint(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(PassEvent{Mode: "FD", Outcome: "applied", Altered: 3})
	h := NewHandler(agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.TotalPasses != 1 || body.ByMode["FD"].Applied != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestPassesEndpoint(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{rows: []OutcomeRow{{Mode: "SD", Outcome: "applied", Passes: 7}}}
	h := NewHandler(NewAggregator(nil), store)
	h.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	h.Passes(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/passes?window=30m", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if !store.since.Equal(now.Add(-30 * time.Minute)) {
		t.Errorf("since = %v", store.since)
	}
	var body struct {
		Groups []OutcomeRow `json:"groups"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Groups) != 1 || body.Groups[0].Passes != 7 {
		t.Errorf("groups = %+v", body.Groups)
	}

	rec = httptest.NewRecorder()
	h.Passes(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/passes?window=-1h", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative window status = %d", rec.Code)
	}

	store.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.Passes(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/passes", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("store failure status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHandler(NewAggregator(nil), nil).Passes(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/passes", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled history status = %d", rec.Code)
	}
}
