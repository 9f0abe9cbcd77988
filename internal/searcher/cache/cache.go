// Package cache keeps ranked search results in Redis. Keys cover the
// canonical query, the page size and the dependence settings in force, so a
// settings reload never serves results scored under the old configuration.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the key-value backend; *redis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cacheable search.
type Key struct {
	// Query is the canonical plan, parser.QueryPlan.String.
	Query string
	Limit int
	// Settings is the dependence settings fingerprint after any per-request
	// mode override.
	Settings string
}

func (k Key) String() string {
	raw := fmt.Sprintf("%s|limit=%d|dep=%s", k.Query, k.Limit, k.Settings)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Stats are counted since start.
type Stats struct {
	Hits     int64  `json:"hits"`
	Misses   int64  `json:"misses"`
	Bypassed int64  `json:"bypassed"`
	Circuit  string `json:"circuit"`
	// CircuitFailures counts consecutive store failures.
	CircuitFailures int `json:"circuit_failures"`
}

// QueryCache degrades to a pass-through when Redis misbehaves: every store
// call runs through a circuit breaker, and errors are logged, never returned.
type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	bypassed atomic.Int64
}

func New(store Store, ttl time.Duration, breaker *resilience.CircuitBreaker) *QueryCache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("result-cache", resilience.CircuitBreakerConfig{})
	}
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: breaker,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := key.String()
	var data []byte
	var found bool
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, found, err = c.store.Get(ctx, k)
		return err
	})
	if err != nil {
		c.bypassed.Add(1)
		logger.ForRequest(ctx, c.logger).Warn("cache get failed", "key", k, "error", err)
		return nil, false
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", key.Query, "key", k)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := key.String()
	data, err := json.Marshal(result)
	if err != nil {
		// NaN scores cannot be encoded; such results are simply not cached
		c.logger.Warn("cache marshal failed", "key", k, "error", err)
		return
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.store.Set(ctx, k, data, c.ttl)
	})
	if err != nil {
		logger.ForRequest(ctx, c.logger).Warn("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached result for key or computes, caches and
// returns it. Concurrent misses on one key share a single computation. The
// bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		// partial passes are served but not cached
		if result.Dependence == nil || result.Dependence.Outcome != "partial" {
			c.Set(ctx, key, result)
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	snap := c.breaker.Snapshot()
	return Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Bypassed:        c.bypassed.Load(),
		Circuit:         snap.State.String(),
		CircuitFailures: snap.ConsecutiveFailures,
	}
}
