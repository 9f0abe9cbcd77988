// Package executor runs a parsed query against the index shards: it gathers
// postings, selects candidates with the boolean operators, ranks them with
// BM25, refines the ranking with a dependence pass and merges the shards.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/tracing"
)

// Options tune a single search.
type Options struct {
	Limit int
	// Mode overrides the configured dependence mode when set.
	Mode dependence.Mode
	// QueryID labels logs and pass reports. Generated when empty.
	QueryID string
}

// DependenceSummary folds the per-shard pass reports of one query.
type DependenceSummary struct {
	Mode      string         `json:"mode"`
	Outcome   string         `json:"outcome"`
	Terms     int            `json:"terms"`
	Altered   int            `json:"altered"`
	NonFinite int            `json:"non_finite,omitempty"`
	Shards    map[string]int `json:"shards"`
}

type SearchResult struct {
	Query      string             `json:"query"`
	QueryID    string             `json:"query_id"`
	TotalHits  int                `json:"total_hits"`
	Results    []ranker.ScoredDoc `json:"results"`
	TermStats  map[string]int     `json:"term_stats"`
	Dependence *DependenceSummary `json:"dependence,omitempty"`
}

func emptyResult(plan *parser.QueryPlan, queryID string) *SearchResult {
	return &SearchResult{
		Query:     plan.RawQuery,
		QueryID:   queryID,
		Results:   []ranker.ScoredDoc{},
		TermStats: map[string]int{},
	}
}

// Executor searches a single engine.
type Executor struct {
	engine   *indexer.Engine
	modifier *dependence.Modifier
	logger   *slog.Logger
}

// New returns an Executor for one engine. A nil modifier ranks with BM25
// alone.
func New(engine *indexer.Engine, modifier *dependence.Modifier) *Executor {
	return &Executor{
		engine:   engine,
		modifier: modifier,
		logger:   slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, opts Options) (*SearchResult, error) {
	if opts.QueryID == "" {
		opts.QueryID = uuid.NewString()
	}
	if len(plan.Terms) == 0 {
		return emptyResult(plan, opts.QueryID), nil
	}
	sp, err := fetchShard(0, e.engine, queryWords(plan))
	if err != nil {
		return nil, err
	}
	g := newGlobalStats([]*shardPostings{sp})
	out := scoreShard(ctx, sp, plan, g, e.modifier, opts, opts.QueryID)

	result := &SearchResult{
		Query:     plan.RawQuery,
		QueryID:   opts.QueryID,
		TotalHits: out.hits,
		Results:   out.docs,
		TermStats: g.termStats(),
	}
	if out.report != nil {
		result.Dependence = summarize([]dependence.Report{*out.report})
	}
	logger.ForRequest(ctx, e.logger).Info("query executed",
		"query", plan.RawQuery,
		"query_id", opts.QueryID,
		"candidates", out.hits,
		"results", len(out.docs),
	)
	return result, nil
}

// shardPostings is what one shard holds for the words of a query.
type shardPostings struct {
	shardID     int
	engine      *indexer.Engine
	postings    map[string]index.PostingList
	totalDocs   int
	totalTokens int64
}

func fetchShard(shardID int, engine *indexer.Engine, words []string) (*shardPostings, error) {
	sp := &shardPostings{
		shardID:     shardID,
		engine:      engine,
		postings:    make(map[string]index.PostingList, len(words)),
		totalDocs:   engine.TotalDocs(),
		totalTokens: engine.TotalTokens(),
	}
	for _, w := range words {
		postings, err := engine.Postings(w)
		if err != nil {
			return nil, fmt.Errorf("shard %d, term %q: %w", shardID, w, err)
		}
		if len(postings) > 0 {
			sp.postings[w] = postings
		}
	}
	return sp, nil
}

// globalStats are the collection-wide totals BM25 and the dependence scorer
// share across shards.
type globalStats struct {
	docs    int64
	tokens  int64
	docFreq map[string]int
}

func newGlobalStats(shards []*shardPostings) globalStats {
	g := globalStats{docFreq: make(map[string]int)}
	for _, sp := range shards {
		g.docs += int64(sp.totalDocs)
		g.tokens += sp.totalTokens
		for w, postings := range sp.postings {
			g.docFreq[w] += len(postings)
		}
	}
	return g
}

func (g globalStats) avgDocLength() float64 {
	if g.docs == 0 {
		return 0
	}
	return float64(g.tokens) / float64(g.docs)
}

func (g globalStats) termStats() map[string]int {
	out := make(map[string]int, len(g.docFreq))
	for w, df := range g.docFreq {
		out[w] = df
	}
	return out
}

type shardOutcome struct {
	shardID int
	hits    int
	docs    []ranker.ScoredDoc
	report  *dependence.Report
}

// scoreShard selects, ranks and re-scores one shard's candidates and returns
// its best opts.Limit documents.
func scoreShard(
	ctx context.Context,
	sp *shardPostings,
	plan *parser.QueryPlan,
	g globalStats,
	modifier *dependence.Modifier,
	opts Options,
	passID string,
) shardOutcome {
	out := shardOutcome{shardID: sp.shardID}
	candidates := selectCandidates(plan, sp.postings)
	out.hits = len(candidates)
	if len(candidates) == 0 {
		out.docs = []ranker.ScoredDoc{}
		return out
	}

	seen := make(map[string]bool)
	var terms []ranker.TermPostings
	for _, group := range plan.RetrievalGroups() {
		for _, w := range group {
			if seen[w] || len(sp.postings[w]) == 0 {
				continue
			}
			seen[w] = true
			terms = append(terms, ranker.TermPostings{
				Term:     w,
				Weight:   plan.Weight(w),
				DocFreq:  g.docFreq[w],
				Postings: sp.postings[w],
			})
		}
	}
	rs := ranker.Rank(terms,
		ranker.RankParams{TotalDocs: g.docs, AvgDocLength: g.avgDocLength()},
		sp.engine.DocLength,
		func(id int) bool { _, ok := candidates[id]; return ok },
	)

	if modifier != nil {
		idx := &engineIndex{
			engine:   sp.engine,
			postings: sp.postings,
			stats:    dependence.CollectionStats{NumTokens: g.tokens, NumDocs: g.docs},
		}
		passCtx, span := tracing.StartChildSpan(ctx, "dependence")
		report := modifier.Apply(passCtx, idx, dependenceQuery(plan, opts, passID), rs)
		span.End()
		span.SetAttr("outcome", report.Outcome.String())
		span.SetAttr("altered", report.Altered)
		out.report = &report
	}
	out.docs = ranker.Named(rs, sp.shardID, opts.Limit, sp.engine.DocName)
	return out
}

func dependenceQuery(plan *parser.QueryPlan, opts Options, passID string) dependence.Query {
	base := plan.DependenceTerms()
	terms := make([]dependence.Term, len(base))
	for i, t := range base {
		terms[i] = dependence.Term{Text: t.Text, Weight: t.Weight, Synonyms: t.Synonyms}
	}
	return dependence.Query{ID: passID, Terms: terms, Mode: opts.Mode}
}

// queryWords lists every word whose postings a query needs, once.
func queryWords(plan *parser.QueryPlan) []string {
	seen := make(map[string]bool)
	var words []string
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	for _, group := range plan.RetrievalGroups() {
		for _, w := range group {
			add(w)
		}
	}
	for _, w := range plan.ExcludeTerms {
		add(w)
	}
	return words
}

// selectCandidates applies AND/OR across the retrieval groups (each group
// matching any of its alternatives) and removes excluded documents.
func selectCandidates(plan *parser.QueryPlan, postings map[string]index.PostingList) map[int]struct{} {
	groups := plan.RetrievalGroups()
	sets := make([]map[int]struct{}, 0, len(groups))
	for _, group := range groups {
		set := make(map[int]struct{})
		for _, w := range group {
			for _, p := range postings[w] {
				set[p.DocID] = struct{}{}
			}
		}
		sets = append(sets, set)
	}

	var candidates map[int]struct{}
	switch plan.Type {
	case parser.QueryOR:
		candidates = unionSets(sets)
	default:
		candidates = intersectSets(sets)
	}
	for _, w := range plan.ExcludeTerms {
		for _, p := range postings[w] {
			delete(candidates, p.DocID)
		}
	}
	return candidates
}

func intersectSets(sets []map[int]struct{}) map[int]struct{} {
	if len(sets) == 0 {
		return make(map[int]struct{})
	}
	shortest := 0
	for i, s := range sets {
		if len(s) < len(sets[shortest]) {
			shortest = i
		}
	}
	candidates := make(map[int]struct{}, len(sets[shortest]))
	for id := range sets[shortest] {
		candidates[id] = struct{}{}
	}
	for i, s := range sets {
		if i == shortest {
			continue
		}
		for id := range candidates {
			if _, ok := s[id]; !ok {
				delete(candidates, id)
			}
		}
	}
	return candidates
}

func unionSets(sets []map[int]struct{}) map[int]struct{} {
	result := make(map[int]struct{})
	for _, s := range sets {
		for id := range s {
			result[id] = struct{}{}
		}
	}
	return result
}

// summarize folds shard reports: the query's outcome is partial if any shard
// was partial, applied if any shard applied, skipped otherwise.
func summarize(reports []dependence.Report) *DependenceSummary {
	if len(reports) == 0 {
		return nil
	}
	s := &DependenceSummary{Shards: make(map[string]int)}
	worst := dependence.OutcomeSkipped
	for _, r := range reports {
		s.Shards[r.Outcome.String()]++
		s.Altered += r.Altered
		s.NonFinite += r.NonFinite
		if r.Terms > s.Terms {
			s.Terms = r.Terms
		}
		if s.Mode == "" {
			s.Mode = string(r.Mode)
		}
		switch {
		case r.Outcome == dependence.OutcomePartial:
			worst = dependence.OutcomePartial
		case r.Outcome == dependence.OutcomeApplied && worst == dependence.OutcomeSkipped:
			worst = dependence.OutcomeApplied
		}
	}
	s.Outcome = worst.String()
	return s
}
