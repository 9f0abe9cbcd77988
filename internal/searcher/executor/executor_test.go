package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

var corpus = []struct{ name, body string }{
	{"d1", "quick brown fox jumps"},
	{"d2", "brown quick"},
	{"d3", "lazy dog sleeps"},
}

func newRouter(t *testing.T, storePositions bool) *shard.Router {
	t.Helper()
	r, err := shard.NewRouter(config.IndexerConfig{
		DataDir:        t.TempDir(),
		NumShards:      2,
		StorePositions: storePositions,
		SegmentMaxSize: 1 << 30,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	for _, d := range corpus {
		if _, _, err := r.IndexDocument(d.name, "", d.body); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

// windowModifier adds ten points per matching window so proximity dominates
// the BM25 differences of the tiny corpus.
func windowModifier(mode dependence.Mode) *dependence.Modifier {
	s := dependence.DefaultSettings()
	s.Mode = mode
	return dependence.New(dependence.Static(s),
		dependence.WithScorer(dependence.StaticScorer(func(count, _ int) float64 {
			return float64(count) * 10
		})))
}

func names(res *SearchResult) []string {
	out := make([]string, len(res.Results))
	for i, d := range res.Results {
		out[i] = d.DocID
	}
	return out
}

func TestShardedBM25Only(t *testing.T) {
	r := newRouter(t, true)
	se := NewSharded(r.GetAllEngines(), nil, time.Second)

	res, err := se.Execute(context.Background(), parser.Parse("quick brown"), Options{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	got := names(res)
	if len(got) != 2 || got[0] != "d2" || got[1] != "d1" {
		t.Errorf("BM25 order = %v, want [d2 d1]", got)
	}
	if res.TotalHits != 2 || res.Dependence != nil || res.QueryID == "" {
		t.Errorf("result = %+v", res)
	}
	if res.TermStats["quick"] != 2 || res.TermStats["brown"] != 2 {
		t.Errorf("term stats = %v", res.TermStats)
	}
}

func TestShardedSequentialDependenceReorders(t *testing.T) {
	r := newRouter(t, true)
	se := NewSharded(r.GetAllEngines(), windowModifier(dependence.ModeSequential), time.Second)

	res, err := se.Execute(context.Background(), parser.Parse("quick brown"), Options{Limit: 10, QueryID: "q-1"})
	if err != nil {
		t.Fatal(err)
	}
	got := names(res)
	if len(got) != 2 || got[0] != "d1" {
		t.Errorf("order with SD = %v, want d1 first", got)
	}
	dep := res.Dependence
	if dep == nil || dep.Outcome != "applied" || dep.Mode != "SD" || dep.Altered != 2 || dep.Terms != 2 {
		t.Fatalf("dependence summary = %+v", dep)
	}
	if res.QueryID != "q-1" {
		t.Errorf("query id = %q", res.QueryID)
	}
}

func TestModeOverridePerQuery(t *testing.T) {
	r := newRouter(t, true)
	se := NewSharded(r.GetAllEngines(), windowModifier(dependence.ModeUnset), time.Second)

	res, err := se.Execute(context.Background(), parser.Parse("quick brown"), Options{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if res.Dependence == nil || res.Dependence.Outcome != "skipped" {
		t.Errorf("unset mode should skip, got %+v", res.Dependence)
	}

	res, err = se.Execute(context.Background(), parser.Parse("quick brown"), Options{Limit: 10, Mode: dependence.ModeFull})
	if err != nil {
		t.Fatal(err)
	}
	if res.Dependence == nil || res.Dependence.Outcome != "applied" || res.Dependence.Mode != "FD" {
		t.Errorf("FD override summary = %+v", res.Dependence)
	}
}

func TestMissingPositionsIsPartial(t *testing.T) {
	r := newRouter(t, false)
	se := NewSharded(r.GetAllEngines(), windowModifier(dependence.ModeSequential), time.Second)

	res, err := se.Execute(context.Background(), parser.Parse("quick brown"), Options{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if res.Dependence == nil || res.Dependence.Outcome != "partial" {
		t.Errorf("summary = %+v", res.Dependence)
	}
	if len(res.Results) != 2 {
		t.Errorf("BM25 results must survive a partial pass: %+v", res.Results)
	}
}

func TestBooleanOperators(t *testing.T) {
	r := newRouter(t, true)
	se := NewSharded(r.GetAllEngines(), nil, 0)

	cases := map[string][]string{
		"quick OR dog":    {"d1", "d2", "d3"},
		"quick NOT fox":   {"d2"},
		"{fox dog} quick": {"d1"},
		"unicorn":         {},
	}
	for q, want := range cases {
		res, err := se.Execute(context.Background(), parser.Parse(q), Options{Limit: 10})
		if err != nil {
			t.Fatalf("%q: %v", q, err)
		}
		got := map[string]bool{}
		for _, n := range names(res) {
			got[n] = true
		}
		if len(got) != len(want) {
			t.Errorf("%q returned %v, want %v", q, names(res), want)
			continue
		}
		for _, n := range want {
			if !got[n] {
				t.Errorf("%q missing %s: %v", q, n, names(res))
			}
		}
	}
}

func TestEmptyPlan(t *testing.T) {
	se := NewSharded(map[int]*indexer.Engine{}, nil, 0)
	res, err := se.Execute(context.Background(), parser.Parse("the a"), Options{})
	if err != nil || len(res.Results) != 0 {
		t.Errorf("empty plan = %+v, %v", res, err)
	}
}

func TestSingleEngineExecutor(t *testing.T) {
	e, err := indexer.NewEngine(config.IndexerConfig{DataDir: t.TempDir(), StorePositions: true, SegmentMaxSize: 1 << 30})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	for _, d := range corpus {
		if _, err := e.IndexDocument(d.name, "", d.body); err != nil {
			t.Fatal(err)
		}
	}
	res, err := New(e, windowModifier(dependence.ModeSequential)).Execute(context.Background(), parser.Parse("quick brown"), Options{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := names(res); len(got) != 1 || got[0] != "d1" {
		t.Errorf("top result = %v", got)
	}
	if res.TotalHits != 2 || res.Dependence.Outcome != "applied" {
		t.Errorf("result = %+v", res)
	}
}

func TestEngineIndexOpenStream(t *testing.T) {
	e, err := indexer.NewEngine(config.IndexerConfig{DataDir: t.TempDir(), StorePositions: true})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, err := e.IndexDocument("d1", "", "alpha beta alpha"); err != nil {
		t.Fatal(err)
	}
	idx := &engineIndex{engine: e, postings: map[string]index.PostingList{}, stats: dependence.CollectionStats{NumTokens: 3, NumDocs: 1}}

	if _, err := idx.OpenStream("gamma"); !errors.Is(err, apperrors.ErrTermNotFound) {
		t.Errorf("missing term error = %v", err)
	}
	s, err := idx.OpenStream("alpha")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if id, _ := s.Next(); id != 0 {
		t.Fatalf("first doc = %d", id)
	}
	pos, err := s.Positions()
	if err != nil || len(pos) != 2 || pos[1] != 2 || s.DocLength() != 3 {
		t.Errorf("positions = %v, %v, length %d", pos, err, s.DocLength())
	}
	if idx.CollectionStats().NumDocs != 1 {
		t.Error("collection stats not passed through")
	}
}

func TestSummarize(t *testing.T) {
	s := summarize([]dependence.Report{
		{Outcome: dependence.OutcomeApplied, Mode: dependence.ModeFull, Altered: 3, Terms: 2},
		{Outcome: dependence.OutcomeSkipped, Mode: dependence.ModeFull},
		{Outcome: dependence.OutcomePartial, Mode: dependence.ModeFull, Altered: 1, NonFinite: 1, Terms: 3},
	})
	if s.Outcome != "partial" || s.Altered != 4 || s.NonFinite != 1 || s.Terms != 3 || s.Mode != "FD" {
		t.Errorf("summary = %+v", s)
	}
	if s.Shards["applied"] != 1 || s.Shards["skipped"] != 1 || s.Shards["partial"] != 1 {
		t.Errorf("shard outcomes = %v", s.Shards)
	}
	if summarize(nil) != nil {
		t.Error("no reports should give no summary")
	}
}
