// Package consumers reads statement draft events back from Kafka.
package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/family-finance-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// Event is a single message read from the events topic
type Event struct {
	Key       string
	Type      string
	Payload   []byte
	Partition int
	Offset    int64
	Time      time.Time
}

// EventHandler processes one event. Returning an error leaves the offset uncommitted.
type EventHandler func(ctx context.Context, event Event) error

// MessageReader wraps kafka.Reader methods for testing
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventConsumer tails the statement events topic within a consumer group
type EventConsumer struct {
	reader       MessageReader
	logger       *slog.Logger
	topic        string
	groupID      string
	retryBackoff time.Duration
}

func NewEventConsumer(logger *slog.Logger, cfg *config.KafkaConfig, groupID string) *EventConsumer {
	return &EventConsumer{
		logger:       logger,
		topic:        cfg.EventsTopic,
		groupID:      groupID,
		retryBackoff: time.Second,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.EventsTopic,
			GroupID:     groupID,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     time.Second,
			StartOffset: kafka.FirstOffset,
		}),
	}
}

// Consume blocks until ctx is canceled, handing every fetched message to handler.
// Offsets are committed only after the handler succeeds.
func (c *EventConsumer) Consume(ctx context.Context, handler EventHandler) error {
	c.logger.Info("Subscribed to Kafka topic",
		"topic", c.topic,
		"group_id", c.groupID,
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Context canceled, stopping consumer", "topic", c.topic, "group_id", c.groupID)
				return nil
			}
			c.logger.Error("Failed to fetch message from Kafka",
				"topic", c.topic,
				"group_id", c.groupID,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryBackoff):
			}
			continue
		}

		event := toEvent(msg)
		c.logger.Debug("Received message from Kafka",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", event.Key,
			"event_type", event.Type,
		)

		if err := handler(ctx, event); err != nil {
			c.logger.Error("Failed to process message, will not commit offset",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", event.Key,
				"error", err,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset %d on partition %d: %w", msg.Offset, msg.Partition, err)
		}
	}
}

func (c *EventConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

func toEvent(msg kafka.Message) Event {
	event := Event{
		Key:       string(msg.Key),
		Payload:   msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
	for _, h := range msg.Headers {
		if h.Key == "event-type" {
			event.Type = string(h.Value)
		}
	}
	return event
}
