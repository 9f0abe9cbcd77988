package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	if got := percentile(sorted, 50); got != 50*time.Millisecond {
		t.Errorf("p50 = %s", got)
	}
	if got := percentile(sorted, 99); got != 99*time.Millisecond {
		t.Errorf("p99 = %s", got)
	}
	if got := percentile(sorted[:1], 95); got != time.Millisecond {
		t.Errorf("single sample p95 = %s", got)
	}
	if percentile(nil, 50) != 0 {
		t.Error("empty input should give zero")
	}
}

func TestSearchReadsOutcome(t *testing.T) {
	var gotMode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMode = r.URL.Query().Get("mode")
		w.Write([]byte(`{"results":[],"dependence":{"mode":"FD","outcome":"applied"}}`))
	}))
	defer srv.Close()

	_, status, outcome, err := search(context.Background(), srv.Client(), srv.URL, "quick fox", "FD")
	if err != nil || status != http.StatusOK || outcome != "applied" || gotMode != "FD" {
		t.Errorf("status=%d outcome=%q mode=%q err=%v", status, outcome, gotMode, err)
	}

	s := newModeStats()
	s.record(time.Millisecond, status, outcome, nil)
	s.record(0, http.StatusServiceUnavailable, "", nil)
	if len(s.latencies) != 1 || s.errors != 1 || s.outcomes["applied"] != 1 {
		t.Errorf("stats = %+v", s)
	}
}
