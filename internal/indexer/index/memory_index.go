// Package index holds the in-memory inverted index that buffers documents
// until the engine flushes them into an immutable segment.
package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/tokenizer"
)

type MemoryIndex struct {
	mu             sync.RWMutex
	index          map[string]map[int]*Posting
	docs           []DocEntry
	storePositions bool
	size           int64
}

// NewMemoryIndex creates an empty index. Without storePositions postings
// only carry frequencies.
func NewMemoryIndex(storePositions bool) *MemoryIndex {
	return &MemoryIndex{
		index:          make(map[string]map[int]*Posting),
		storePositions: storePositions,
	}
}

// AddDocument indexes the tokens of doc. doc.Length should equal
// len(tokens).
func (m *MemoryIndex) AddDocument(doc DocEntry, tokens []tokenizer.Token) {
	termData := make(map[string]*Posting)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{DocID: doc.ID}
			if m.storePositions {
				p.Positions = make([]int, 0, 4)
			}
			termData[token.Term] = p
		}
		p.Frequency++
		if m.storePositions {
			p.Positions = append(p.Positions, token.Position)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for term, posting := range termData {
		docs, exists := m.index[term]
		if !exists {
			docs = make(map[int]*Posting)
			m.index[term] = docs
		}
		docs[doc.ID] = posting
		m.size += int64(len(term) + 16 + len(posting.Positions)*8 + 48)
	}
	m.docs = append(m.docs, doc)
	m.size += int64(len(doc.Name) + 32)
}

// Search returns the postings of an already normalised term.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedPostings(m.index[term])
}

// Snapshot returns every term, sorted, and the documents added since the last
// Reset.
func (m *MemoryIndex) Snapshot() ([]TermEntry, []DocEntry) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		entries = append(entries, TermEntry{Term: term, Postings: sortedPostings(docs)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	docs := make([]DocEntry, len(m.docs))
	copy(docs, m.docs)
	return entries, docs
}

func sortedPostings(docs map[int]*Posting) PostingList {
	if len(docs) == 0 {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}

// Size is an estimate of the heap held by the index, in bytes.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]map[int]*Posting)
	m.docs = nil
	m.size = 0
}
