package indexer

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

func testConfig(t *testing.T) config.IndexerConfig {
	t.Helper()
	return config.IndexerConfig{
		DataDir:        t.TempDir(),
		SegmentMaxSize: 1 << 30,
		StorePositions: true,
	}
}

func TestIndexAndSearch(t *testing.T) {
	e, err := NewEngine(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	a, err := e.IndexDocument("doc-a", "Quick fox", "the quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.IndexDocument("doc-b", "", "lazy brown dog")
	if err != nil {
		t.Fatal(err)
	}
	if a != 0 || b != 1 {
		t.Errorf("internal ids = %d, %d; want 0, 1", a, b)
	}

	postings, err := e.Search("Brown")
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 2 {
		t.Fatalf("brown postings = %+v", postings)
	}
	if got := postings[0].Positions; len(got) != 1 || got[0] != 3 {
		t.Errorf("positions of brown in doc-a = %v, want [3]", got)
	}

	if name, ok := e.DocName(1); !ok || name != "doc-b" {
		t.Errorf("DocName(1) = %q, %v", name, ok)
	}
	if _, ok := e.DocName(7); ok {
		t.Error("unknown id should not resolve")
	}
	if e.DocLength(0) != 5 || e.DocLength(1) != 3 {
		t.Errorf("doc lengths = %d, %d", e.DocLength(0), e.DocLength(1))
	}
	if e.TotalDocs() != 2 || e.TotalTokens() != 8 || e.AvgDocLength() != 4 {
		t.Errorf("totals: docs=%d tokens=%d avg=%v", e.TotalDocs(), e.TotalTokens(), e.AvgDocLength())
	}
}

func TestDuplicateAndEmptyNames(t *testing.T) {
	e, err := NewEngine(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.IndexDocument("same", "", "text"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.IndexDocument("same", "", "other text"); !errors.Is(err, apperrors.ErrDocumentExists) {
		t.Errorf("duplicate name error = %v", err)
	}
	if _, err := e.IndexDocument("", "", "text"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty name error = %v", err)
	}
}

func TestFlushAndRecover(t *testing.T) {
	cfg := testConfig(t)
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.IndexDocument("doc-a", "", "alpha beta gamma"); err != nil {
		t.Fatal(err)
	}
	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.IndexDocument("doc-b", "", "beta delta"); err != nil {
		t.Fatal(err)
	}

	beta, err := e.Search("beta")
	if err != nil {
		t.Fatal(err)
	}
	if len(beta) != 2 {
		t.Fatalf("postings across memory and segment = %+v", beta)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.TotalDocs() != 2 || reopened.TotalTokens() != 5 {
		t.Errorf("recovered docs=%d tokens=%d", reopened.TotalDocs(), reopened.TotalTokens())
	}
	if name, _ := reopened.DocName(1); name != "doc-b" {
		t.Errorf("recovered name of id 1 = %q", name)
	}
	if _, err := reopened.IndexDocument("doc-a", "", "again"); !errors.Is(err, apperrors.ErrDocumentExists) {
		t.Errorf("recovered engine should know doc-a: %v", err)
	}
	id, err := reopened.IndexDocument("doc-c", "", "epsilon")
	if err != nil || id != 2 {
		t.Errorf("next id = %d, %v; want 2", id, err)
	}
}

func TestReloadSegments(t *testing.T) {
	cfg := testConfig(t)
	writer, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()
	reader, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if _, err := writer.IndexDocument("doc-a", "", "shared words here"); err != nil {
		t.Fatal(err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatal(err)
	}

	if n := reader.ReloadSegments(); n != 1 {
		t.Fatalf("ReloadSegments = %d, want 1", n)
	}
	if n := reader.ReloadSegments(); n != 0 {
		t.Errorf("second reload = %d, want 0", n)
	}
	postings, err := reader.Search("shared")
	if err != nil || len(postings) != 1 {
		t.Errorf("postings after reload = %+v, %v", postings, err)
	}
}

func TestWithoutPositions(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorePositions = false
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.IndexDocument("doc-a", "", "alpha alpha"); err != nil {
		t.Fatal(err)
	}
	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}
	postings, err := e.Search("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 1 || postings[0].Frequency != 2 || postings[0].Positions != nil {
		t.Errorf("postings = %+v", postings)
	}
	if e.StorePositions() {
		t.Error("StorePositions should report false")
	}
}
