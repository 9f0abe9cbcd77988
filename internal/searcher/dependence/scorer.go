package dependence

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

// dependence is the contribution of the current document, built from the
// streams that align marked usable.
func (p *pass) dependence(docID int) (float64, error) {
	n := len(p.phrase.streams)
	w := p.phrase.weights
	var total float64
	if p.mode == ModeSequential {
		for i := 0; i < n-1; i++ {
			if !p.usable[i] || !p.usable[i+1] {
				continue
			}
			s, err := p.scorePair(docID, i, i+1, true)
			if err != nil {
				return total, err
			}
			total += Combine(w[i], w[i+1], p.settings.QTW) * p.settings.WeightOrdered * s
		}
		return total, nil
	}
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			if !p.usable[i] || !p.usable[j] {
				continue
			}
			s, err := p.scorePair(docID, i, j, false)
			if err != nil {
				return total, err
			}
			total += p.settings.WeightUnordered * Combine(w[i], w[j], p.settings.QTW) * s
		}
	}
	return total, nil
}

func (p *pass) scorePair(docID, i, j int, ordered bool) (float64, error) {
	x, err := p.phrase.streams[i].Positions()
	if err != nil {
		return 0, fmt.Errorf("positions of %q: %w", p.phrase.names[i], err)
	}
	y, err := p.phrase.streams[j].Positions()
	if err != nil {
		return 0, fmt.Errorf("positions of %q: %w", p.phrase.names[j], err)
	}
	docLength := p.phrase.streams[i].DocLength()
	var matches int
	if ordered {
		matches = p.counter.Ordered(x, y, p.settings.NgramLength, docLength)
	} else {
		matches = p.counter.Unordered(x, y, p.settings.NgramLength, docLength)
	}
	s := p.scorer.Score(matches, docLength)
	if !isFinite(s) {
		p.nonFinite++
		logNonFinite(p.log, docID, i, j, matches, docLength, s)
	}
	return s, nil
}

// DocPosting is one term's posting for a single document. A nil Positions
// slice means the index holds no positions for it.
type DocPosting struct {
	DocID     int
	Positions []int
	DocLength int
}

// ScoreDocument scores one document directly from one posting per query
// term, in phrase order, without a result set. Adjacent pairs are scored with
// the ordered counter and unit pair weights; the sum is scaled by w_o.
func (m *Modifier) ScoreDocument(postings []DocPosting) (float64, error) {
	settings := m.settings.Settings().normalized()
	scorer := m.scorers(Collection{NgramLength: settings.NgramLength})
	var total float64
	for i := 0; i < len(postings)-1; i++ {
		a, b := postings[i], postings[i+1]
		if a.Positions == nil || b.Positions == nil {
			return 0, fmt.Errorf("document %d, terms %d,%d: %w", a.DocID, i, i+1, apperrors.ErrMissingPositions)
		}
		matches := m.counter.Ordered(a.Positions, b.Positions, settings.NgramLength, a.DocLength)
		s := scorer.Score(matches, a.DocLength)
		if !isFinite(s) {
			logNonFinite(m.logger, a.DocID, i, i+1, matches, a.DocLength, s)
		}
		total += s
	}
	return settings.WeightOrdered * total, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// logNonFinite reports a scoring anomaly. The value is still used.
func logNonFinite(log *slog.Logger, docID, i, j, matches, docLength int, s float64) {
	log.Warn("dependence scoring function returned a non-finite value",
		"doc_id", docID,
		"pair", strconv.Itoa(i)+","+strconv.Itoa(j),
		"matching_windows", matches,
		"doc_length", docLength,
		"score", strconv.FormatFloat(s, 'g', -1, 64),
	)
}
