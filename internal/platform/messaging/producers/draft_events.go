package producers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/family-finance-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// EventTypeHeader carries the domain event type on every published message
const EventTypeHeader = "event-type"

// DraftEventProducer publishes statement draft events keyed by draft id.
// Writes are synchronous so the relay only marks a message processed after the broker acked it.
type DraftEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewDraftEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DraftEventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka statement events topic is not configured")
	}

	spec := topicSpec{Name: cfg.EventsTopic, NumPartitions: cfg.NumPartitions, ReplicationFactor: cfg.ReplicationFactor}
	if err := provisionTopic(cfg.Brokers, spec, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure events topic %s exists: %w", cfg.EventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &DraftEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventsTopic,
	}, nil
}

func (p *DraftEventProducer) Publish(ctx context.Context, key, eventType string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish statement draft event",
			"topic", p.topic,
			"key", key,
			"event_type", eventType,
			"error", err,
		)
		return fmt.Errorf("failed to publish event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published statement draft event",
		"topic", p.topic,
		"key", key,
		"event_type", eventType,
	)
	return nil
}

func (p *DraftEventProducer) Close() error {
	p.logger.Info("Closing statement draft event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
