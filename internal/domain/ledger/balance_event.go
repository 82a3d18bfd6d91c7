package ledger

import (
	"time"

	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceEvent is an append-only signed delta against one account on one date.
// An account's balance as of a date is the sum of its deltas up to and including that date.
type BalanceEvent struct {
	ID            uuid.UUID                 `json:"id"`
	BudgetID      uuid.UUID                 `json:"budget_id"`
	AccountID     uuid.UUID                 `json:"account_id"`
	Date          time.Time                 `json:"date"`
	Delta         decimal.Decimal           `json:"delta"`
	Reason        shared.BalanceEventReason `json:"reason"`
	TransactionID *uuid.UUID                `json:"transaction_id,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func NewBalanceEvent(
	budgetID, accountID uuid.UUID,
	date time.Time,
	delta decimal.Decimal,
	reason shared.BalanceEventReason,
	transactionID *uuid.UUID,
) *BalanceEvent {
	return &BalanceEvent{
		ID:            uuid.New(),
		BudgetID:      budgetID,
		AccountID:     accountID,
		Date:          date,
		Delta:         delta,
		Reason:        reason,
		TransactionID: transactionID,
		CreatedAt:     time.Now().UTC(),
	}
}
