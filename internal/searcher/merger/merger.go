// Package merger combines the per-shard rankings into the global top k.
package merger

import (
	"container/heap"
	"math"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/ranker"
)

// Merge keeps the limit best documents across shards (10 when limit <= 0),
// best first. NaN scores rank below every number.
func Merge(shardResults [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		limit = 10
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, results := range shardResults {
		for _, doc := range results {
			heap.Push(h, doc)
			if h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

func sortKey(score float64) float64 {
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}

// scoredDocHeap is a min-heap: the root is the weakest document kept.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	si, sj := sortKey(h[i].Score), sortKey(h[j].Score)
	if si != sj {
		return si < sj
	}
	if h[i].DocID != h[j].DocID {
		return h[i].DocID > h[j].DocID
	}
	return h[i].ShardID > h[j].ShardID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
