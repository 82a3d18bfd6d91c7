package outbox_relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/family-finance-ledger/internal/domain/outbox"
	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAppliedMessage(t *testing.T, id int64, attempts int) *outbox.Message {
	t.Helper()
	msg, err := outbox.NewDraftAppliedMessage(&outbox.DraftAppliedEvent{
		DraftID:        uuid.New(),
		BudgetID:       uuid.New(),
		UserID:         "user-1",
		TransactionIDs: []uuid.UUID{uuid.New()},
		AppliedAt:      time.Now(),
	})
	require.NoError(t, err)
	msg.ID = id
	msg.Attempts = attempts
	return msg
}

func TestEventPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("PublishesAndMarksProcessed", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		events := &MockEventPublisher{}
		publisher := NewEventPublisher(repo, events, newTestLogger())
		msg := newAppliedMessage(t, 1, 0)

		events.On("Publish", ctx, msg.AggregateID.String(), outbox.EventDraftApplied, []byte(msg.Payload)).Return(nil).Once()
		repo.On("UpdateStatus", ctx, int64(1), shared.OutboxStatusProcessed).Return(nil).Once()

		require.NoError(t, publisher.Publish(ctx, msg))
		events.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("BrokerErrorLeavesRowPending", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		events := &MockEventPublisher{}
		publisher := NewEventPublisher(repo, events, newTestLogger())
		msg := newAppliedMessage(t, 2, 0)
		brokerErr := errors.New("leader not available")

		events.On("Publish", ctx, mock.Anything, mock.Anything, mock.Anything).Return(brokerErr).Once()

		err := publisher.Publish(ctx, msg)
		assert.ErrorIs(t, err, brokerErr)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StatusUpdateFailure", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		events := &MockEventPublisher{}
		publisher := NewEventPublisher(repo, events, newTestLogger())
		msg := newAppliedMessage(t, 3, 0)
		dbErr := errors.New("connection reset")

		events.On("Publish", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		repo.On("UpdateStatus", ctx, int64(3), shared.OutboxStatusProcessed).Return(dbErr).Once()

		err := publisher.Publish(ctx, msg)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to mark outbox 3 as PROCESSED")
	})

	t.Run("CorruptPayloadIsUndeliverable", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		events := &MockEventPublisher{}
		publisher := NewEventPublisher(repo, events, newTestLogger())
		msg := newAppliedMessage(t, 4, 0)
		msg.Payload = []byte(`{"draft_id": 12}`)

		err := publisher.Publish(ctx, msg)
		var undeliverable ErrUndeliverable
		require.ErrorAs(t, err, &undeliverable)
		assert.Equal(t, int64(4), undeliverable.MessageID)
		events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownEventTypeIsUndeliverable", func(t *testing.T) {
		publisher := NewEventPublisher(&MockOutboxRepo{}, &MockEventPublisher{}, newTestLogger())
		msg := newAppliedMessage(t, 5, 0)
		msg.EventType = "statement_draft.revised"

		err := publisher.Publish(ctx, msg)
		assert.ErrorAs(t, err, &ErrUndeliverable{})
	})
}
