package dependence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/resultset"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

// phrase holds the streams of the query terms found in the index, in phrase
// order, with their query weights.
type phrase struct {
	names   []string
	weights []float64
	streams []PostingStream
}

// openPhrase opens one stream per phrase slot. Terms without postings are
// left out of the phrase. On error every stream opened so far is closed.
func openPhrase(log *slog.Logger, idx Index, terms []Term, splitSynonyms bool) (_ *phrase, err error) {
	ph := &phrase{}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: opening posting streams: %v", apperrors.ErrInternal, r)
		}
		if err != nil {
			ph.close(log)
		}
	}()

	seen := make(map[string]struct{})
	for _, t := range terms {
		group := append([]string{t.Text}, t.Synonyms...)
		if splitSynonyms {
			for _, name := range group {
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				s, err := openTerm(idx, name)
				if err != nil {
					return nil, err
				}
				if s == nil {
					log.Debug("phrase term has no postings", "term", name)
					continue
				}
				ph.add(name, t.Weight, s)
			}
			continue
		}

		var children []PostingStream
		for _, name := range group {
			s, err := openTerm(idx, name)
			if err != nil {
				for _, c := range children {
					c.Close()
				}
				return nil, err
			}
			if s != nil {
				children = append(children, s)
			}
		}
		switch len(children) {
		case 0:
			log.Debug("phrase term has no postings", "term", t.Text)
		case 1:
			ph.add(t.Text, t.Weight, children[0])
		default:
			ph.add(t.Text, t.Weight, NewUnionStream(children...))
		}
	}
	for i, name := range ph.names {
		log.Debug("phrase term", "position", i, "term", name, "weight", ph.weights[i])
	}
	return ph, nil
}

func openTerm(idx Index, name string) (PostingStream, error) {
	s, err := idx.OpenStream(name)
	if errors.Is(err, apperrors.ErrTermNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening postings for %q: %w", name, err)
	}
	return s, nil
}

func (ph *phrase) add(name string, weight float64, s PostingStream) {
	ph.names = append(ph.names, name)
	ph.weights = append(ph.weights, weight)
	ph.streams = append(ph.streams, s)
}

func (ph *phrase) close(log *slog.Logger) {
	for i, s := range ph.streams {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			log.Warn("closing posting stream failed", "term", ph.names[i], "error", err)
		}
	}
	ph.streams = ph.streams[:0]
}

// pass is the state of one document-at-a-time traversal.
type pass struct {
	log      *slog.Logger
	settings Settings
	mode     Mode
	phrase   *phrase
	counter  ProximityCounter
	scorer   ScoringFunc

	finished  []bool
	usable    []bool
	nonFinite int
}

// run scores rs in place and returns the number of altered documents. On
// error the documents before the failing one keep their new scores.
func (p *pass) run(rs *resultset.ResultSet) (int, error) {
	streams := p.phrase.streams
	p.finished = make([]bool, len(streams))
	p.usable = make([]bool, len(streams))
	for i, s := range streams {
		id, err := s.Next()
		if err != nil {
			return 0, fmt.Errorf("reading first posting of %q: %w", p.phrase.names[i], err)
		}
		p.finished[i] = id == EOL
	}

	// the streams only move forward, so documents must be visited in order
	rs.SortByDocID()

	allZero := true
	for i := range rs.Scores {
		if rs.Scores[i] != 0 {
			allZero = false
		}
		rs.Scores[i] *= p.settings.WeightUnigram
	}

	altered := 0
	for k, target := range rs.DocIDs {
		// a non-positive score marks an irrelevant document, unless every
		// score is zero and nothing could be ranked otherwise
		if !allZero && rs.Scores[k] <= 0 {
			continue
		}
		if err := p.align(target); err != nil {
			return altered, err
		}
		if countTrue(p.usable) < 2 {
			continue
		}
		altered++
		contribution, err := p.dependence(target)
		if err != nil {
			return altered, err
		}
		rs.Scores[k] += contribution
	}
	return altered, nil
}

// align advances every unfinished stream to the first document >= target and
// marks which streams sit exactly on target.
func (p *pass) align(target int) error {
	for i, s := range p.phrase.streams {
		p.usable[i] = false
		if p.finished[i] {
			continue
		}
		for s.DocID() < target {
			id, err := s.Next()
			if err != nil {
				return fmt.Errorf("advancing postings of %q towards document %d: %w", p.phrase.names[i], target, err)
			}
			if id == EOL {
				p.finished[i] = true
				break
			}
		}
		if p.finished[i] || s.DocID() > target {
			continue
		}
		p.usable[i] = true
	}
	return nil
}

func countTrue(in []bool) int {
	n := 0
	for _, b := range in {
		if b {
			n++
		}
	}
	return n
}
