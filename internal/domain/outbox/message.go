package outbox

import (
	"encoding/json"
	"time"

	"github.com/family-finance-ledger/internal/domain/ledger"
	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// EventDraftApplied is emitted once per successfully applied statement draft
const EventDraftApplied = "statement_draft.applied"

// DraftAppliedEvent is the payload of EventDraftApplied
type DraftAppliedEvent struct {
	DraftID            uuid.UUID          `json:"draft_id"`
	BudgetID           uuid.UUID          `json:"budget_id"`
	UserID             string             `json:"user_id"`
	TransactionIDs     []uuid.UUID        `json:"transaction_ids"`
	CreatedAccountIDs  []uuid.UUID        `json:"created_account_ids"`
	CreatedCategoryIDs []uuid.UUID        `json:"created_category_ids"`
	BalanceEventIDs    []uuid.UUID        `json:"balance_event_ids"`
	PreviousDebts      *ledger.DebtTotals `json:"previous_debts,omitempty"`
	AppliedAt          time.Time          `json:"applied_at"`
}

// Message stores a domain event for reliable publishing after commit
type Message struct {
	ID            int64               `json:"id"`
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	EventType     string              `json:"event_type"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewDraftAppliedMessage(event *DraftAppliedEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		AggregateID: event.DraftID,
		EventType:   EventDraftApplied,
		Payload:     payload,
		Status:      shared.OutboxStatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// DraftAppliedEvent decodes the payload of an EventDraftApplied message
func (m *Message) DraftAppliedEvent() (*DraftAppliedEvent, error) {
	var event DraftAppliedEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
