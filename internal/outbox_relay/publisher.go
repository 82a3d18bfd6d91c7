package outbox_relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/family-finance-ledger/internal/domain/outbox"
	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/family-finance-ledger/internal/platform/messaging/producers"
)

// Publisher delivers one outbox message to the event bus
type Publisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// ErrUndeliverable marks a message that can never be published, whatever the retry count
type ErrUndeliverable struct {
	MessageID int64
	Reason    string
}

func (e ErrUndeliverable) Error() string {
	return fmt.Sprintf("outbox message %d is undeliverable: %s", e.MessageID, e.Reason)
}

// EventPublisher publishes applied-draft events keyed by draft id and marks the row processed
type EventPublisher struct {
	outboxRepo outbox.Repository
	events     producers.EventPublisher
	logger     *slog.Logger
}

func NewEventPublisher(
	outboxRepo outbox.Repository,
	events producers.EventPublisher,
	logger *slog.Logger,
) *EventPublisher {
	return &EventPublisher{
		outboxRepo: outboxRepo,
		events:     events,
		logger:     logger,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	logger := p.logger.With("outbox_id", message.ID, "aggregate_id", message.AggregateID, "event_type", message.EventType)

	if message.EventType != outbox.EventDraftApplied {
		return ErrUndeliverable{MessageID: message.ID, Reason: "unknown event type " + message.EventType}
	}
	event, err := message.DraftAppliedEvent()
	if err != nil {
		logger.Error("Failed to decode outbox payload", "error", err)
		return ErrUndeliverable{MessageID: message.ID, Reason: err.Error()}
	}

	logger = logger.With("budget_id", event.BudgetID)
	logger.Debug("Publishing outbox message", "attempts", message.Attempts)

	if err := p.events.Publish(ctx, message.AggregateID.String(), message.EventType, message.Payload); err != nil {
		return fmt.Errorf("failed to publish outbox message %d: %w", message.ID, err)
	}

	// A failure here republishes on the next tick; consumers dedupe on draft_id.
	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("event for draft %s published, but failed to mark outbox %d as PROCESSED: %w", message.AggregateID, message.ID, err)
	}

	logger.Info("Outbox message published and marked as PROCESSED")
	return nil
}
