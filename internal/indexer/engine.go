// Package indexer owns one shard of the inverted index: an in-memory buffer,
// the immutable segments flushed from it and the table of documents with
// their token lengths.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

// Engine indexes documents under dense internal IDs 0..n-1 and answers
// posting lookups from memory and segments together. Safe for concurrent use.
type Engine struct {
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	readers  []*segment.Reader
	loaded   map[string]bool
	readerMu sync.RWMutex
	flushMu  sync.Mutex
	cfg      config.IndexerConfig
	logger   *slog.Logger

	docsMu      sync.RWMutex
	docs        []index.DocEntry
	byName      map[string]int
	totalTokens int64
}

func NewEngine(cfg config.IndexerConfig) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(cfg.StorePositions),
		writer:   segment.NewWriter(cfg.DataDir),
		cfg:      cfg,
		logger:   slog.Default().With("component", "indexer", "data_dir", cfg.DataDir),
		byName:   make(map[string]int),
		loaded:   make(map[string]bool),
	}
	if _, err := e.loadSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	e.logger.Info("segment recovery complete",
		"segments_loaded", len(e.readers),
		"documents", e.TotalDocs(),
	)
	return e, nil
}

// IndexDocument tokenizes title and body and adds them under a new internal
// ID, which it returns. Names are unique per engine.
func (e *Engine) IndexDocument(name, title, body string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: document name is empty", apperrors.ErrInvalidInput)
	}
	tokens := tokenizer.Tokenize(title + " " + body)

	e.docsMu.Lock()
	if _, exists := e.byName[name]; exists {
		e.docsMu.Unlock()
		return 0, fmt.Errorf("%w: %s", apperrors.ErrDocumentExists, name)
	}
	doc := index.DocEntry{ID: len(e.docs), Name: name, Length: len(tokens)}
	e.docs = append(e.docs, doc)
	e.byName[name] = doc.ID
	e.totalTokens += int64(doc.Length)
	e.docsMu.Unlock()

	// a flush in progress must not reset the buffer under this document
	e.flushMu.Lock()
	e.memIndex.AddDocument(doc, tokens)
	e.flushMu.Unlock()
	e.logger.Debug("document indexed in memory",
		"doc_id", doc.ID,
		"doc_name", name,
		"token_count", doc.Length,
		"mem_size", e.memIndex.Size(),
	)
	if e.cfg.SegmentMaxSize > 0 && e.memIndex.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", e.memIndex.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(); err != nil {
			return doc.ID, fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return doc.ID, nil
}

// Flush writes the memory index to a new segment and empties it.
func (e *Engine) Flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	entries, docs := e.memIndex.Snapshot()
	if len(entries) == 0 {
		return nil
	}
	name, err := e.writer.Write(entries, docs)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.loaded[name] = true
	active := len(e.readers)
	e.readerMu.Unlock()
	// postings briefly exist in both places; Postings deduplicates them
	e.memIndex.Reset()

	e.logger.Info("segment flushed",
		"segment", name,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
		"active_segments", active,
	)
	return nil
}

// Postings returns the merged posting list of an already normalised term.
func (e *Engine) Postings(term string) (index.PostingList, error) {
	lists := []index.PostingList{e.memIndex.Search(term)}

	e.readerMu.RLock()
	readers := make([]*segment.Reader, len(e.readers))
	copy(readers, e.readers)
	e.readerMu.RUnlock()

	for _, reader := range readers {
		postings, err := reader.Search(term)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrShardUnavailable, err)
		}
		lists = append(lists, postings)
	}
	return index.MergePostings(lists...), nil
}

// Search normalises a raw query word and returns its postings.
func (e *Engine) Search(word string) (index.PostingList, error) {
	term, ok := tokenizer.Default.Term(word)
	if !ok {
		return nil, nil
	}
	return e.Postings(term)
}

// StorePositions reports whether postings carry token positions.
func (e *Engine) StorePositions() bool {
	return e.cfg.StorePositions
}

func (e *Engine) DocName(id int) (string, bool) {
	e.docsMu.RLock()
	defer e.docsMu.RUnlock()
	if id < 0 || id >= len(e.docs) {
		return "", false
	}
	return e.docs[id].Name, true
}

func (e *Engine) DocLength(id int) int {
	e.docsMu.RLock()
	defer e.docsMu.RUnlock()
	if id < 0 || id >= len(e.docs) {
		return 0
	}
	return e.docs[id].Length
}

func (e *Engine) AvgDocLength() float64 {
	e.docsMu.RLock()
	defer e.docsMu.RUnlock()
	if len(e.docs) == 0 {
		return 0
	}
	return float64(e.totalTokens) / float64(len(e.docs))
}

func (e *Engine) TotalDocs() int {
	e.docsMu.RLock()
	defer e.docsMu.RUnlock()
	return len(e.docs)
}

func (e *Engine) TotalTokens() int64 {
	e.docsMu.RLock()
	defer e.docsMu.RUnlock()
	return e.totalTokens
}

// StartFlushLoop flushes every FlushInterval until ctx is done, then once
// more.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	interval := e.cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.memIndex.DocCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "segment", reader.Path(), "error", err)
		}
	}
	e.readers = nil
	return nil
}

// ReloadSegments opens segments another process flushed into DataDir since
// the last scan and returns how many were added.
func (e *Engine) ReloadSegments() int {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	n, err := e.loadSegments()
	if err != nil {
		e.logger.Error("segment reload failed", "error", err)
	}
	if n > 0 {
		e.logger.Info("segments reloaded", "new_segments", n, "documents", e.TotalDocs())
	}
	return n
}

// loadSegments opens the not yet loaded segments in DataDir in creation
// order and extends the document table from them.
func (e *Engine) loadSegments() (int, error) {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading data directory: %w", err)
	}
	var names []string
	e.readerMu.RLock()
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, segment.FileExt) && !e.loaded[name] {
			names = append(names, name)
		}
	}
	e.readerMu.RUnlock()
	sort.Strings(names)

	var docs []index.DocEntry
	var opened []*segment.Reader
	for _, name := range names {
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Error("failed to open segment, skipping", "segment", name, "error", err)
			continue
		}
		opened = append(opened, reader)
		docs = append(docs, reader.Docs()...)
		e.logger.Info("loaded segment",
			"segment", name,
			"terms", reader.Terms(),
			"docs", reader.DocCount(),
		)
	}
	if len(opened) == 0 {
		return 0, nil
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	e.docsMu.Lock()
	for _, d := range docs {
		if d.ID < len(e.docs) {
			continue
		}
		// a skipped segment leaves a gap; keep IDs aligned with slice offsets
		for len(e.docs) < d.ID {
			e.docs = append(e.docs, index.DocEntry{ID: len(e.docs)})
		}
		e.docs = append(e.docs, d)
		e.byName[d.Name] = d.ID
		e.totalTokens += int64(d.Length)
	}
	e.docsMu.Unlock()

	e.readerMu.Lock()
	for _, r := range opened {
		e.readers = append(e.readers, r)
		e.loaded[filepath.Base(r.Path())] = true
	}
	e.readerMu.Unlock()
	return len(opened), nil
}
