package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
)

// Event is one message to publish. Key picks the partition; Value is
// marshalled as JSON.
type Event struct {
	Key   string
	Value any
}

// ProducerOptions tunes delivery. The zero value is synchronous with acks
// from all replicas.
type ProducerOptions struct {
	// Async returns from Publish before the broker acknowledges. Failures
	// are only logged.
	Async        bool
	BatchTimeout time.Duration
}

type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return NewProducerWithOptions(cfg, topic, ProducerOptions{})
}

func NewProducerWithOptions(cfg config.KafkaConfig, topic string, opts ProducerOptions) *Producer {
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 10 * time.Millisecond
	}
	logger := slog.Default().With("component", "kafka-producer", "topic", topic)
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: opts.BatchTimeout,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
		Async:        opts.Async,
	}
	if opts.Async {
		w.RequiredAcks = kafka.RequireOne
		w.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("async publish failed", "count", len(messages), "error", err)
			}
		}
	}
	return &Producer{writer: w, logger: logger}
}

// Publish writes a single event.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch writes events in a single call. Nothing is sent if any value
// fails to marshal.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	messages, err := encodeEvents(events)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish", "count", len(messages), "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("published", "count", len(messages))
	return nil
}

func encodeEvents(events []Event) ([]kafka.Message, error) {
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling event %q: %w", event.Key, err)
		}
		messages = append(messages, kafka.Message{Key: []byte(event.Key), Value: value})
	}
	return messages, nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
