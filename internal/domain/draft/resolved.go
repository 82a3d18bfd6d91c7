package draft

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ResolvedOperation is an operation with its names mapped to ids where they already exist.
// Names are kept so that apply can resolve again after creating missing entities.
type ResolvedOperation struct {
	Index         int             `json:"index"`
	Date          string          `json:"date"`
	Type          OperationType   `json:"type"`
	Amount        Number          `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	AccountName   string          `json:"account_name"`
	AccountID     *uuid.UUID      `json:"account_id"`
	ToAccountName string          `json:"to_account_name,omitempty"`
	ToAccountID   *uuid.UUID      `json:"to_account_id"`
	CategoryName  string          `json:"category_name,omitempty"`
	CategoryID    *uuid.UUID      `json:"category_id"`
	Counterparty  string          `json:"counterparty,omitempty"`
	Note          string          `json:"note,omitempty"`
	Debt          json.RawMessage `json:"debt,omitempty"`
}

// HasDebt is true when the model attached debt metadata to the operation
func (o ResolvedOperation) HasDebt() bool {
	s := string(o.Debt)
	return len(s) > 0 && s != "null" && s != "{}"
}
