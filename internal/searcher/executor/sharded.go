package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/tracing"
)

// ShardedExecutor searches every shard in parallel. Postings are gathered
// first so BM25 and the dependence scorer see collection-wide statistics;
// each shard then ranks and re-scores its own candidates. A shard that
// fails or exceeds its timeout is left out of the answer.
type ShardedExecutor struct {
	engines  map[int]*indexer.Engine
	modifier *dependence.Modifier
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSharded builds an executor over engines. timeout bounds each phase of
// each shard; zero disables it.
func NewSharded(engines map[int]*indexer.Engine, modifier *dependence.Modifier, timeout time.Duration) *ShardedExecutor {
	return &ShardedExecutor{
		engines:  engines,
		modifier: modifier,
		timeout:  timeout,
		logger:   slog.Default().With("component", "sharded-executor"),
	}
}

func (se *ShardedExecutor) Execute(ctx context.Context, plan *parser.QueryPlan, opts Options) (*SearchResult, error) {
	if opts.QueryID == "" {
		opts.QueryID = uuid.NewString()
	}
	if len(plan.Terms) == 0 {
		return emptyResult(plan, opts.QueryID), nil
	}
	log := logger.ForRequest(ctx, se.logger).With("query_id", opts.QueryID)
	ctx, span := tracing.StartSpan(ctx, "search", opts.QueryID)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	shards, err := se.fetchAll(ctx, queryWords(plan))
	if err != nil {
		return nil, fmt.Errorf("shard fan-out: %w", err)
	}
	if len(shards) == 0 {
		return emptyResult(plan, opts.QueryID), nil
	}
	g := newGlobalStats(shards)

	outcomes := make([]*shardOutcome, len(shards))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, sp := range shards {
		i, sp := i, sp
		eg.Go(func() error {
			var out shardOutcome
			spanCtx, child := tracing.StartChildSpan(egCtx, "score")
			child.SetAttr("shard_id", sp.shardID)
			err := resilience.WithTimeout(spanCtx, se.timeout, fmt.Sprintf("score shard %d", sp.shardID), func(ctx context.Context) error {
				out = scoreShard(ctx, sp, plan, g, se.modifier, opts, fmt.Sprintf("%s/shard-%d", opts.QueryID, sp.shardID))
				child.End()
				return nil
			})
			if err != nil {
				log.Error("shard scoring failed", "shard_id", sp.shardID, "error", err)
				return nil
			}
			outcomes[i] = &out
			return nil
		})
	}
	_ = eg.Wait()

	var (
		lists   [][]ranker.ScoredDoc
		reports []dependence.Report
		hits    int
	)
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		hits += out.hits
		lists = append(lists, out.docs)
		if out.report != nil {
			reports = append(reports, *out.report)
		}
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("%w: all %d shards failed", apperrors.ErrShardUnavailable, len(shards))
	}

	result := &SearchResult{
		Query:      plan.RawQuery,
		QueryID:    opts.QueryID,
		TotalHits:  hits,
		Results:    merger.Merge(lists, opts.Limit),
		TermStats:  g.termStats(),
		Dependence: summarize(reports),
	}
	attrs := []any{
		"query", plan.RawQuery,
		"shards_queried", len(lists),
		"global_candidates", hits,
		"results", len(result.Results),
	}
	if result.Dependence != nil {
		attrs = append(attrs, "dependence", result.Dependence.Outcome, "altered", result.Dependence.Altered)
	}
	log.Info("sharded query executed", attrs...)
	return result, nil
}

// fetchAll reads the query's postings from every shard. The writes into the
// result slice happen under a mutex because a timed-out fetch keeps running.
func (se *ShardedExecutor) fetchAll(ctx context.Context, words []string) ([]*shardPostings, error) {
	ids := make([]int, 0, len(se.engines))
	for id := range se.engines {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var mu sync.Mutex
	var fetched []*shardPostings
	eg, egCtx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		engine := se.engines[id]
		eg.Go(func() error {
			_, span := tracing.StartChildSpan(egCtx, "fetch")
			span.SetAttr("shard_id", id)
			err := resilience.WithTimeout(egCtx, se.timeout, fmt.Sprintf("fetch shard %d", id), func(context.Context) error {
				defer span.End()
				sp, err := fetchShard(id, engine, words)
				if err != nil {
					return err
				}
				mu.Lock()
				fetched = append(fetched, sp)
				mu.Unlock()
				return nil
			})
			if err != nil {
				se.logger.Error("shard query failed", "shard_id", id, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(fetched) == 0 && len(se.engines) > 0 {
		return nil, fmt.Errorf("%w: all %d shards failed", apperrors.ErrShardUnavailable, len(se.engines))
	}
	out := append([]*shardPostings(nil), fetched...)
	sort.Slice(out, func(i, j int) bool { return out[i].shardID < out[j].shardID })
	return out, nil
}
