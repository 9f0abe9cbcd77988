// Package resultset holds the candidate documents of one query as three
// parallel columns (document ID, score, occurrence count) that scoring
// passes mutate in place.
package resultset

import (
	"fmt"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

// ResultSet is owned by a single query. Columns are indexed by position and
// always have the same length.
type ResultSet struct {
	DocIDs      []int
	Scores      []float64
	Occurrences []int16
}

// New returns an empty ResultSet with room for n documents.
func New(n int) *ResultSet {
	return &ResultSet{
		DocIDs:      make([]int, 0, n),
		Scores:      make([]float64, 0, n),
		Occurrences: make([]int16, 0, n),
	}
}

// Add appends one document.
func (rs *ResultSet) Add(docID int, score float64, occurrences int16) {
	rs.DocIDs = append(rs.DocIDs, docID)
	rs.Scores = append(rs.Scores, score)
	rs.Occurrences = append(rs.Occurrences, occurrences)
}

func (rs *ResultSet) Len() int {
	return len(rs.DocIDs)
}

// Validate checks that the columns line up and that no document appears twice.
func (rs *ResultSet) Validate() error {
	if len(rs.Scores) != len(rs.DocIDs) || len(rs.Occurrences) != len(rs.DocIDs) {
		return fmt.Errorf("%w: column lengths differ (docids=%d scores=%d occurrences=%d)",
			apperrors.ErrInvalidInput, len(rs.DocIDs), len(rs.Scores), len(rs.Occurrences))
	}
	seen := make(map[int]struct{}, len(rs.DocIDs))
	for _, id := range rs.DocIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate document %d", apperrors.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// SortByDocID orders all three columns by ascending document ID. Scores and
// occurrence counts travel with their document and never break ties.
func (rs *ResultSet) SortByDocID() {
	sort.Stable(byDocID{columns{rs}})
}

// SortByScore orders all three columns by descending score, ties broken by
// ascending document ID.
func (rs *ResultSet) SortByScore() {
	sort.Sort(byScore{columns{rs}})
}

// Top truncates the set to its first k entries. k <= 0 keeps everything.
func (rs *ResultSet) Top(k int) {
	if k <= 0 || k >= rs.Len() {
		return
	}
	rs.DocIDs = rs.DocIDs[:k]
	rs.Scores = rs.Scores[:k]
	rs.Occurrences = rs.Occurrences[:k]
}

// Clone returns a deep copy.
func (rs *ResultSet) Clone() *ResultSet {
	return &ResultSet{
		DocIDs:      append([]int(nil), rs.DocIDs...),
		Scores:      append([]float64(nil), rs.Scores...),
		Occurrences: append([]int16(nil), rs.Occurrences...),
	}
}

type columns struct{ rs *ResultSet }

func (c columns) Len() int { return len(c.rs.DocIDs) }

func (c columns) Swap(i, j int) {
	c.rs.DocIDs[i], c.rs.DocIDs[j] = c.rs.DocIDs[j], c.rs.DocIDs[i]
	c.rs.Scores[i], c.rs.Scores[j] = c.rs.Scores[j], c.rs.Scores[i]
	c.rs.Occurrences[i], c.rs.Occurrences[j] = c.rs.Occurrences[j], c.rs.Occurrences[i]
}

type byDocID struct{ columns }

func (b byDocID) Less(i, j int) bool {
	return b.rs.DocIDs[i] < b.rs.DocIDs[j]
}

type byScore struct{ columns }

func (b byScore) Less(i, j int) bool {
	if b.rs.Scores[i] != b.rs.Scores[j] {
		return b.rs.Scores[i] > b.rs.Scores[j]
	}
	return b.rs.DocIDs[i] < b.rs.DocIDs[j]
}
