package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDependencePass(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordDependencePass("SD", "applied", 12, 0, 3*time.Millisecond)
	m.RecordDependencePass("SD", "partial", 4, 2, time.Millisecond)
	m.RecordDependencePass("", "skipped", 0, 0, 0)

	if got := testutil.ToFloat64(m.DependencePassesTotal.WithLabelValues("SD", "applied")); got != 1 {
		t.Errorf("applied passes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DependencePassesTotal.WithLabelValues("unset", "skipped")); got != 1 {
		t.Errorf("skipped passes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DependenceNonFiniteTotal); got != 2 {
		t.Errorf("non-finite = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.DependenceAlteredDocs); got != 1 {
		t.Errorf("altered histogram series = %d, want 1", got)
	}
}

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("registering twice on one registry should panic")
		}
	}()
	New(reg)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.DocsIndexedTotal.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "docs_indexed_total 3") {
		t.Errorf("scrape output missing counter:\n%s", body)
	}
}
