// Package consumer reads ingest events from Kafka and indexes them into the
// shard that owns each document.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/metrics"
)

// IndexConsumer drives the indexing pipeline from a Kafka consumer.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that indexes each IngestEvent in
// the shard its name hashes to. Undecodable messages and documents the shard
// already holds are acknowledged and dropped. m may be nil.
func HandleMessage(router *shard.Router, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event", "error", err, "key", string(key))
			return nil
		}
		if want := shard.ShardFor(event.Name, router.NumShards()); want != event.ShardID {
			logger.Warn("ingest event carries a stale shard id, rerouting",
				"doc_name", event.Name,
				"event_shard", event.ShardID,
				"shard_id", want,
			)
			event.ShardID = want
		}
		engine, err := router.Route(event.ShardID)
		if err != nil {
			return fmt.Errorf("routing shard %d: %w", event.ShardID, err)
		}

		docID, err := engine.IndexDocument(event.Name, event.Title, event.Body)
		if errors.Is(err, apperrors.ErrDocumentExists) || errors.Is(err, apperrors.ErrInvalidInput) {
			logger.Warn("ingest event skipped", "doc_name", event.Name, "reason", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("indexing document %s in shard %d: %w", event.Name, event.ShardID, err)
		}
		if m != nil {
			m.DocsIndexedTotal.Inc()
		}
		logger.Info("document indexed",
			"doc_name", event.Name,
			"doc_id", docID,
			"shard_id", event.ShardID,
		)
		return nil
	}
}
