// Package shard partitions documents across independent index engines. A
// document's shard is derived from a hash of its name, so the indexer and
// the searcher agree on placement without coordination.
package shard

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

// ShardFor maps a document name onto one of numShards shards.
func ShardFor(name string, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(name) % uint64(numShards))
}

// Router owns one indexer.Engine per shard.
type Router struct {
	engines   map[int]*indexer.Engine
	mu        sync.RWMutex
	numShards int
	logger    *slog.Logger
}

// NewRouter creates cfg.NumShards engines, each in its own sub-directory of
// cfg.DataDir.
func NewRouter(cfg config.IndexerConfig) (*Router, error) {
	numShards := cfg.NumShards
	if numShards < 1 {
		numShards = 1
	}
	r := &Router{
		engines:   make(map[int]*indexer.Engine, numShards),
		numShards: numShards,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < numShards; i++ {
		shardCfg := cfg
		shardCfg.DataDir = filepath.Join(cfg.DataDir, fmt.Sprintf("shard-%d", i))
		engine, err := indexer.NewEngine(shardCfg)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines[i] = engine
		r.logger.Debug("shard engine initialized", "shard_id", i, "data_dir", shardCfg.DataDir)
	}
	r.logger.Info("shard router ready", "num_shards", numShards, "store_positions", cfg.StorePositions)
	return r, nil
}

// Route returns the engine that owns shardID.
func (r *Router) Route(shardID int) (*indexer.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[shardID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown shard ID %d (valid range: 0-%d)", apperrors.ErrShardUnavailable, shardID, r.numShards-1)
	}
	return engine, nil
}

// IndexDocument stores a document in the shard its name hashes to and returns
// the shard and the internal document ID.
func (r *Router) IndexDocument(name, title, body string) (shardID, docID int, err error) {
	shardID = ShardFor(name, r.numShards)
	engine, err := r.Route(shardID)
	if err != nil {
		return shardID, 0, err
	}
	docID, err = engine.IndexDocument(name, title, body)
	return shardID, docID, err
}

// GetAllEngines returns a snapshot of all shard engines keyed by shard ID.
func (r *Router) GetAllEngines() map[int]*indexer.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[int]*indexer.Engine, len(r.engines))
	for id, engine := range r.engines {
		result[id] = engine
	}
	return result
}

func (r *Router) NumShards() int {
	return r.numShards
}

// TotalDocs sums the documents of every shard.
func (r *Router) TotalDocs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, engine := range r.engines {
		total += engine.TotalDocs()
	}
	return total
}

// FlushAll flushes every shard and joins their errors.
func (r *Router) FlushAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for id, engine := range r.engines {
		if err := engine.Flush(); err != nil {
			r.logger.Error("flush failed", "shard_id", id, "error", err)
			errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ReloadAll picks up segments flushed by another process and returns how
// many were added across all shards.
func (r *Router) ReloadAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, engine := range r.engines {
		total += engine.ReloadSegments()
	}
	return total
}

func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

func (r *Router) closeAll() error {
	var errs []error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
