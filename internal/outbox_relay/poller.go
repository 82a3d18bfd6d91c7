// Package outbox_relay moves committed statement_outbox rows onto Kafka.
package outbox_relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/family-finance-ledger/internal/config"
	"github.com/family-finance-ledger/internal/domain/outbox"
	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/family-finance-ledger/internal/platform/messaging/producers"
)

// Poller processes pending outbox messages
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        Publisher
	dlq              producers.DeadLetterPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

// NewPoller wires the relay loop. dlq may be nil when dead-lettering is disabled.
func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher Publisher,
	dlq producers.DeadLetterPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		dlq:              dlq,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox relay",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox relay stopping due to context cancellation")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := p.publisher.Publish(ctx, msg)
		if err == nil {
			continue
		}

		logger := p.logger.With("outbox_id", msg.ID, "aggregate_id", msg.AggregateID)

		var undeliverable ErrUndeliverable
		if errors.As(err, &undeliverable) {
			logger.Error("Outbox message cannot be published", "error", err)
			p.giveUp(ctx, logger, msg, undeliverable.Reason)
			continue
		}

		logger.Error("Failed to publish outbox message", "current_attempts", msg.Attempts, "error", err)

		if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
			logger.Error("Failed to increment attempts for outbox message", "error", errInc)
			continue
		}

		if msg.Attempts+1 >= p.maxRetryAttempts {
			logger.Warn("Max retry attempts reached for outbox message", "attempts_made", msg.Attempts+1)
			p.giveUp(ctx, logger, msg, fmt.Sprintf("max publish attempts (%d) reached: %v", p.maxRetryAttempts, err))
		}
	}
	return nil
}

// giveUp dead-letters the message when a DLQ is configured and marks it FAILED_TO_PUBLISH
func (p *Poller) giveUp(ctx context.Context, logger *slog.Logger, msg *outbox.Message, reason string) {
	if p.dlq != nil {
		err := p.dlq.PublishToDLQ(ctx, msg.AggregateID.String(), msg.Payload, reason)
		switch {
		case errors.Is(err, producers.ErrDLQDisabled):
		case err != nil:
			// Left PENDING so the next tick retries the dead-lettering.
			logger.Error("Failed to dead-letter outbox message", "error", err)
			return
		default:
			logger.Info("Outbox message sent to DLQ")
		}
	}

	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH", "error", err)
	}
}
