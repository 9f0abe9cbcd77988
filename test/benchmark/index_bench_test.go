// Package benchmark measures indexing, ranking and dependence scoring
// throughput.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
)

const benchBody = "this is a benchmark document with several terms for testing the indexing performance of our memory index"

func filledMemoryIndex(docs int, storePositions bool) *index.MemoryIndex {
	mi := index.NewMemoryIndex(storePositions)
	tokens := tokenizer.Tokenize("search engine with proximity scoring and query processing")
	for i := 0; i < docs; i++ {
		mi.AddDocument(index.DocEntry{ID: i, Name: fmt.Sprintf("doc-%d", i), Length: len(tokens)}, tokens)
	}
	return mi
}

// BenchmarkMemoryIndexAdd compares inserts with and without token positions.
func BenchmarkMemoryIndexAdd(b *testing.B) {
	tokens := tokenizer.Tokenize(benchBody)
	for _, positions := range []bool{true, false} {
		b.Run(fmt.Sprintf("positions_%t", positions), func(b *testing.B) {
			mi := index.NewMemoryIndex(positions)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				mi.AddDocument(index.DocEntry{ID: i, Length: len(tokens)}, tokens)
			}
		})
	}
}

func BenchmarkMemoryIndexSearch(b *testing.B) {
	mi := filledMemoryIndex(10000, true)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = mi.Search("search")
	}
}

func BenchmarkMemoryIndexSearchParallel(b *testing.B) {
	mi := filledMemoryIndex(10000, true)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = mi.Search("search")
		}
	})
}

// BenchmarkMemoryIndexSnapshot measures the copy taken before a segment flush.
func BenchmarkMemoryIndexSnapshot(b *testing.B) {
	mi := filledMemoryIndex(5000, true)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mi.Snapshot()
	}
}

func BenchmarkEngineIndex(b *testing.B) {
	for _, preload := range []int{100, 1000, 5000} {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			engine, err := indexer.NewEngine(config.IndexerConfig{
				DataDir:        b.TempDir(),
				SegmentMaxSize: 100 * 1024 * 1024,
				StorePositions: true,
			})
			if err != nil {
				b.Fatal(err)
			}
			defer engine.Close()

			for i := 0; i < preload; i++ {
				if _, err := engine.IndexDocument(fmt.Sprintf("preload-%d", i), "preload doc", "preloading documents for benchmark warmup phase"); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.IndexDocument(fmt.Sprintf("bench-%d", i), "benchmark title", benchBody); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEnginePostings reads one term's postings merged across the memory
// index and a flushed segment.
func BenchmarkEnginePostings(b *testing.B) {
	engine := populatedEngine(b, b.TempDir(), 10000)
	defer engine.Close()
	if err := engine.Flush(); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		if _, err := engine.IndexDocument(fmt.Sprintf("late-%d", i), "", "proximity search after flush"); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Search(benchTerms[i%len(benchTerms)]); err != nil {
			b.Fatal(err)
		}
	}
}
