// Package publisher turns accepted ingestion requests into Kafka events for
// the indexer, keyed by the shard that will own the document.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	producer  EventPublisher
	numShards int
	now       func() time.Time
	logger    *slog.Logger
}

func New(producer EventPublisher, numShards int) *Publisher {
	return &Publisher{
		producer:  producer,
		numShards: numShards,
		now:       time.Now,
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Ingest assigns the document's shard and publishes its IngestEvent. The
// indexer rejects names it already holds, so republishing is harmless.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	name := strings.TrimSpace(req.Name)
	shardID := shard.ShardFor(name, p.numShards)
	event := kafka.Event{
		Key: strconv.Itoa(shardID),
		Value: ingestion.IngestEvent{
			Name:       name,
			Title:      req.Title,
			Body:       req.Body,
			ShardID:    shardID,
			IngestedAt: p.now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish ingest event", "doc_name", name, "shard_id", shardID, "error", err)
		return nil, apperrors.Newf(fmt.Errorf("%w: %w", apperrors.ErrShardUnavailable, err),
			http.StatusServiceUnavailable, "publishing ingest event for %s", name)
	}
	return &ingestion.IngestResponse{Name: name, Status: "ACCEPTED", ShardID: shardID}, nil
}
