// Package ranker computes the BM25 scores that form the first-pass result
// set a dependence pass later refines.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/resultset"
)

const (
	k1 = 1.2
	b  = 0.75
)

// ScoredDoc is one ranked document as returned to clients.
type ScoredDoc struct {
	DocID   string  `json:"doc_id"`
	ShardID int     `json:"shard_id"`
	Score   float64 `json:"score"`
}

type RankParams struct {
	TotalDocs    int64
	AvgDocLength float64
}

// TermPostings is the posting list of one term and its query weight.
// DocFreq overrides len(Postings) in the IDF, so a shard can score with
// collection-wide frequencies.
type TermPostings struct {
	Term     string
	Weight   float64
	DocFreq  int
	Postings index.PostingList
}

// Rank scores every posting whose document accept admits (all when accept is
// nil). The result set holds one row per document with the weighted BM25 sum
// and the number of terms that matched it, in no particular order.
func Rank(
	terms []TermPostings,
	params RankParams,
	docLength func(docID int) int,
	accept func(docID int) bool,
) *resultset.ResultSet {
	scores := make(map[int]float64)
	matched := make(map[int]int16)
	for _, tp := range terms {
		weight := tp.Weight
		if weight <= 0 {
			weight = 1
		}
		df := tp.DocFreq
		if df <= 0 {
			df = len(tp.Postings)
		}
		idf := computeIDF(params.TotalDocs, int64(df))
		for _, posting := range tp.Postings {
			if accept != nil && !accept(posting.DocID) {
				continue
			}
			tfNorm := computeTFNorm(
				float64(posting.Frequency),
				float64(docLength(posting.DocID)),
				params.AvgDocLength,
			)
			scores[posting.DocID] += weight * idf * tfNorm
			matched[posting.DocID]++
		}
	}
	rs := resultset.New(len(scores))
	for docID, score := range scores {
		rs.Add(docID, score, matched[docID])
	}
	return rs
}

// Named converts the top limit rows of rs into ScoredDocs, resolving
// internal IDs through docName. Rows whose name is unknown are dropped.
// rs is sorted by score as a side effect.
func Named(rs *resultset.ResultSet, shardID int, limit int, docName func(int) (string, bool)) []ScoredDoc {
	rs.SortByScore()
	if limit > 0 {
		rs.Top(limit)
	}
	out := make([]ScoredDoc, 0, rs.Len())
	for i, id := range rs.DocIDs {
		name, ok := docName(id)
		if !ok {
			continue
		}
		out = append(out, ScoredDoc{
			DocID:   name,
			ShardID: shardID,
			Score:   round(rs.Scores[i]),
		})
	}
	return out
}

// SortScored orders docs by descending score, ties by name.
func SortScored(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
}

// round keeps four decimals. Non-finite scores pass through unchanged.
func round(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return score
	}
	return math.Round(score*10000) / 10000
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
