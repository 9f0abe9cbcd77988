package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/metrics"
)

func newRouter(t *testing.T) *shard.Router {
	t.Helper()
	r, err := shard.NewRouter(config.IndexerConfig{DataDir: t.TempDir(), NumShards: 2, StorePositions: true, SegmentMaxSize: 1 << 30})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func encode(t *testing.T, ev ingestion.IngestEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleMessageIndexes(t *testing.T) {
	r := newRouter(t)
	m := metrics.New(prometheus.NewRegistry())
	h := HandleMessage(r, m)

	// a wrong shard id is corrected from the name hash
	ev := ingestion.IngestEvent{Name: "doc-1", Body: "proximity matters", ShardID: 99}
	if err := h(context.Background(), nil, encode(t, ev)); err != nil {
		t.Fatal(err)
	}
	engine, err := r.Route(shard.ShardFor("doc-1", 2))
	if err != nil {
		t.Fatal(err)
	}
	if name, ok := engine.DocName(0); !ok || name != "doc-1" {
		t.Errorf("doc not indexed in its shard: %q %v", name, ok)
	}

	// redelivery is acknowledged without a second copy
	if err := h(context.Background(), nil, encode(t, ev)); err != nil {
		t.Errorf("duplicate delivery returned %v", err)
	}
	if r.TotalDocs() != 1 {
		t.Errorf("TotalDocs = %d, want 1", r.TotalDocs())
	}
	if got := testutil.ToFloat64(m.DocsIndexedTotal); got != 1 {
		t.Errorf("docs indexed metric = %v", got)
	}
}

func TestHandleMessageDropsGarbage(t *testing.T) {
	h := HandleMessage(newRouter(t), nil)
	if err := h(context.Background(), []byte("k"), []byte("{nope")); err != nil {
		t.Errorf("undecodable message should be dropped, got %v", err)
	}
}
