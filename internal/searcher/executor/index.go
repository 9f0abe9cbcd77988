package executor

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

// engineIndex presents one shard engine as a dependence.Index. Postings
// already fetched for ranking are reused; other terms are read from the
// engine. stats carries collection-wide totals so every shard scores
// windows against the same background.
type engineIndex struct {
	engine   *indexer.Engine
	postings map[string]index.PostingList
	stats    dependence.CollectionStats
}

func (ei *engineIndex) OpenStream(term string) (dependence.PostingStream, error) {
	postings, ok := ei.postings[term]
	if !ok {
		var err error
		postings, err = ei.engine.Postings(term)
		if err != nil {
			return nil, fmt.Errorf("reading postings of %q: %w", term, err)
		}
	}
	if len(postings) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTermNotFound, term)
	}
	entries := make([]dependence.Entry, len(postings))
	for i, p := range postings {
		entries[i] = dependence.Entry{
			DocID:     p.DocID,
			Positions: p.Positions,
			DocLength: ei.engine.DocLength(p.DocID),
		}
	}
	return dependence.NewSliceStream(entries), nil
}

func (ei *engineIndex) CollectionStats() dependence.CollectionStats {
	return ei.stats
}
