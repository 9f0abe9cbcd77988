package dependence

import (
	"fmt"
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/proximity"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

// ScoringFunc turns the number of matching windows in a document into a
// score contribution: how surprising that many co-occurrences are for a
// document of this length.
type ScoringFunc interface {
	Score(matchingWindows, docLength int) float64
}

// ScoringFuncFunc adapts a plain function to ScoringFunc.
type ScoringFuncFunc func(matchingWindows, docLength int) float64

func (f ScoringFuncFunc) Score(matchingWindows, docLength int) float64 {
	return f(matchingWindows, docLength)
}

// CollectionStats are corpus totals reported by an Index.
type CollectionStats struct {
	NumTokens int64
	NumDocs   int64
}

// Collection is what a ScoringFunc may know about the corpus for one pass.
type Collection struct {
	NumTokens   int64
	NumDocs     int64
	NgramLength int
	// AvgDocLen is the mean number of windows-worth of tokens per document:
	// the n-1 tokens that cannot start a window are subtracted per document.
	AvgDocLen float64
}

func NewCollection(stats CollectionStats, ngramLength int) Collection {
	c := Collection{
		NumTokens:   stats.NumTokens,
		NumDocs:     stats.NumDocs,
		NgramLength: ngramLength,
	}
	if stats.NumDocs > 0 {
		c.AvgDocLen = float64(stats.NumTokens-stats.NumDocs*int64(ngramLength-1)) / float64(stats.NumDocs)
	}
	return c
}

// ScorerFactory builds the ScoringFunc for one pass.
type ScorerFactory func(Collection) ScoringFunc

// StaticScorer uses fn regardless of the collection.
func StaticScorer(fn ScoringFuncFunc) ScorerFactory {
	return func(Collection) ScoringFunc { return fn }
}

// Ratio scores the fraction of the document covered by matching windows.
func Ratio(Collection) ScoringFunc {
	return ScoringFuncFunc(func(matchingWindows, docLength int) float64 {
		return float64(matchingWindows) / float64(docLength)
	})
}

// BiL is the binomial randomness of the window count, normalised by a
// Laplace after-effect, where a window is a match with probability one over
// the number of windows in the document.
func BiL(c Collection) ScoringFunc {
	ngram := c.NgramLength
	return ScoringFuncFunc(func(matchingWindows, docLength int) float64 {
		windows := proximity.NumWindows(ngram, docLength)
		return binomialSurprise(matchingWindows, windows, 1.0/float64(windows))
	})
}

// PBiL is BiL with the match probability taken from the collection's
// average document length instead of the scored document.
func PBiL(c Collection) ScoringFunc {
	ngram := c.NgramLength
	avg := c.AvgDocLen
	return ScoringFuncFunc(func(matchingWindows, docLength int) float64 {
		windows := proximity.NumWindows(ngram, docLength)
		p := 1.0 / float64(windows)
		if avg > 1 {
			p = 1.0 / (avg - 1)
		}
		return binomialSurprise(matchingWindows, windows, p)
	})
}

// binomialSurprise is -log2 P(X = tf) for X ~ Binomial(n, p), divided by tf+1.
func binomialSurprise(tf, n int, p float64) float64 {
	if tf <= 0 || p >= 1 {
		return 0
	}
	if tf > n {
		tf = n
	}
	ftf, fn := float64(tf), float64(n)
	lnFact := func(x float64) float64 {
		v, _ := math.Lgamma(x + 1)
		return v
	}
	nats := -lnFact(fn) + lnFact(ftf) + lnFact(fn-ftf) -
		ftf*math.Log(p) - (fn-ftf)*math.Log(1-p)
	return nats / math.Ln2 / (ftf + 1)
}

var scorers = map[string]ScorerFactory{
	"ratio": Ratio,
	"bil":   BiL,
	"pbil":  PBiL,
}

// ScorerByName returns a registered ScorerFactory.
func ScorerByName(name string) (ScorerFactory, error) {
	f, ok := scorers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dependence scoring function %q", apperrors.ErrInvalidConfig, name)
	}
	return f, nil
}
