// Package dependence re-scores a query's result set with term proximity
// evidence. Documents in which two or more query terms occur close together
// receive an additional contribution, computed either over adjacent query
// terms (sequential dependence, SD) or over every pair of query terms (full
// dependence, FD).
//
// Postings are traversed document-at-a-time: the result set is sorted by
// document ID and every term's posting stream is advanced in lock-step with
// it, so each posting is read at most once per pass.
//
// A pass is best effort. Failures are logged and reported in the Report, never
// returned to the caller, and posting streams are always closed.
//
// Applying a pass scales every score by w_t. Running it twice on the same
// result set therefore applies w_t twice; callers run it once per query.
package dependence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/proximity"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/resultset"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
)

// Index supplies posting streams and corpus totals.
type Index interface {
	// OpenStream returns an unprimed stream for term, or an error wrapping
	// ErrTermNotFound when the term is not indexed.
	OpenStream(term string) (PostingStream, error)
	CollectionStats() CollectionStats
}

// ProximityCounter counts windows shared by two position lists.
type ProximityCounter interface {
	Ordered(x, y []int, windowLength, docLength int) int
	Unordered(x, y []int, windowLength, docLength int) int
}

// Observer is told about every finished pass.
type Observer interface {
	ObserveDependencePass(r Report, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r Report, elapsed time.Duration)

func (f ObserverFunc) ObserveDependencePass(r Report, elapsed time.Duration) {
	f(r, elapsed)
}

// Observers fans one report out to several observers, in order. Nil
// entries are skipped.
func Observers(obs ...Observer) Observer {
	return ObserverFunc(func(r Report, elapsed time.Duration) {
		for _, o := range obs {
			if o != nil {
				o.ObserveDependencePass(r, elapsed)
			}
		}
	})
}

// Term is one real (non-derived) query term. Synonyms share the term's slot
// in the phrase and its weight.
type Term struct {
	Text     string
	Weight   float64
	Synonyms []string
}

// Query is the input of one pass. Terms are in phrase order and already
// deduplicated. Mode and QTW override the configured values when set.
type Query struct {
	ID    string
	Terms []Term
	Mode  Mode
	QTW   QTWFunc
}

type Outcome int

const (
	// OutcomeSkipped: no score was touched.
	OutcomeSkipped Outcome = iota
	// OutcomePartial: the pass started but an error stopped it.
	OutcomePartial
	// OutcomeApplied: every document was visited.
	OutcomeApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomePartial:
		return "partial"
	case OutcomeApplied:
		return "applied"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Report describes what a pass did.
type Report struct {
	QueryID   string
	Outcome   Outcome
	Mode      Mode
	Terms     int
	Documents int
	// Altered counts documents that received a dependence contribution,
	// including contributions of zero.
	Altered   int
	NonFinite int
	// Err explains a skipped or partial pass.
	Err error
}

// Modified reports whether scores may have been touched.
func (r Report) Modified() bool {
	return r.Outcome != OutcomeSkipped
}

// Modifier applies dependence scoring. It keeps no state between passes;
// one Modifier may serve many queries, one pass at a time per result set.
type Modifier struct {
	name     string
	settings SettingsSource
	counter  ProximityCounter
	scorers  ScorerFactory
	observer Observer
	logger   *slog.Logger
}

type Option func(*Modifier)

func WithCounter(c ProximityCounter) Option {
	return func(m *Modifier) { m.counter = c }
}

func WithScorer(f ScorerFactory) Option {
	return func(m *Modifier) { m.scorers = f }
}

func WithObserver(o Observer) Option {
	return func(m *Modifier) { m.observer = o }
}

func WithName(name string) Option {
	return func(m *Modifier) { m.name = name }
}

func New(settings SettingsSource, opts ...Option) *Modifier {
	m := &Modifier{
		name:     "dependence",
		settings: settings,
		counter:  proximity.Windows{},
		scorers:  BiL,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = slog.Default().With("component", "dependence-modifier", "modifier", m.name)
	return m
}

func (m *Modifier) Name() string {
	return m.name
}

// Settings returns the snapshot the next pass would start from.
func (m *Modifier) Settings() Settings {
	return m.settings.Settings().normalized()
}

// ModifyScores runs a pass and reports whether scores may have changed. It is
// false only when the pass was skipped: fewer than two query terms have
// postings, or the dependence mode is not SD or FD.
func (m *Modifier) ModifyScores(ctx context.Context, idx Index, q Query, rs *resultset.ResultSet) bool {
	return m.Apply(ctx, idx, q, rs).Modified()
}

// Apply runs a pass over rs and returns its Report. On return every score in
// rs is w_t times its old value plus the document's dependence contribution,
// unless the pass was skipped or stopped early.
func (m *Modifier) Apply(ctx context.Context, idx Index, q Query, rs *resultset.ResultSet) (report Report) {
	start := time.Now()
	log := logger.ForRequest(ctx, m.logger).With("query_id", q.ID)

	settings := m.settings.Settings().normalized()
	mode := settings.Mode
	if q.Mode != ModeUnset {
		mode = q.Mode
	}
	if q.QTW != 0 {
		settings.QTW = q.QTW
	}
	report = Report{QueryID: q.ID, Mode: mode}
	if rs != nil {
		report.Documents = rs.Len()
	}

	defer func() {
		if r := recover(); r != nil {
			report.Outcome = OutcomePartial
			report.Err = fmt.Errorf("%w: %v", apperrors.ErrInternal, r)
			log.Error("dependence pass panicked", "panic", r)
		}
		if m.observer != nil {
			m.observer.ObserveDependencePass(report, time.Since(start))
		}
	}()

	log.Info("dependence pass starting", "ngram_length", settings.NgramLength, "mode", mode)
	if !settings.QTW.Valid() {
		log.Error("wrong QTW combination function id, pair weights fall back to 1.0",
			"qtw_fn_id", int(settings.QTW))
	}

	ph, err := openPhrase(log, idx, q.Terms, settings.SplitSynonyms)
	if err != nil {
		log.Error("opening posting streams failed", "error", err)
		report.Outcome = OutcomePartial
		report.Err = err
		return report
	}
	defer ph.close(log)
	report.Terms = len(ph.streams)

	if len(ph.streams) < 2 {
		log.Debug("dependence pass skipped", "terms", len(ph.streams))
		report.Outcome = OutcomeSkipped
		report.Err = apperrors.ErrInsufficientTerms
		return report
	}
	if !mode.Valid() {
		log.Error("dependence type not set, set it to either FD or SD", "mode", string(mode))
		report.Outcome = OutcomeSkipped
		report.Err = fmt.Errorf("%w: dependence mode %q", apperrors.ErrInvalidConfig, mode)
		return report
	}
	if rs == nil {
		rs = resultset.New(0)
	}
	if err := rs.Validate(); err != nil {
		log.Error("result set rejected", "error", err)
		report.Outcome = OutcomePartial
		report.Err = err
		return report
	}

	p := &pass{
		log:      log,
		settings: settings,
		mode:     mode,
		phrase:   ph,
		counter:  m.counter,
		scorer:   m.scorers(NewCollection(idx.CollectionStats(), settings.NgramLength)),
	}
	altered, err := p.run(rs)
	report.Altered = altered
	report.NonFinite = p.nonFinite
	if err != nil {
		report.Outcome = OutcomePartial
		report.Err = err
		if errors.Is(err, apperrors.ErrMissingPositions) {
			log.Error("dependence pass aborted -- does your index have positions enabled?", "error", err)
		} else {
			log.Error("dependence pass aborted", "error", err, "altered", altered)
		}
		return report
	}
	report.Outcome = OutcomeApplied
	log.Info("dependence pass complete",
		"altered", altered,
		"documents", rs.Len(),
		"terms", len(ph.streams),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return report
}
