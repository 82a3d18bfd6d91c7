package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTag marks transactions imported from a statement
const DefaultTag = "one_time"

var (
	ErrNonPositiveAmount    = errors.New("transaction amount must be positive")
	ErrTransferAccounts     = errors.New("transfer requires two different accounts")
	ErrTransferWithCategory = errors.New("transfer cannot have a category")
	ErrExpenseCategory      = errors.New("expense requires a category")
	ErrUnexpectedToAccount  = errors.New("to_account must be empty for income/expense")
)

// Transaction is a materialized money movement in a budget
type Transaction struct {
	ID          uuid.UUID              `json:"id"`
	BudgetID    uuid.UUID              `json:"budget_id"`
	UserID      string                 `json:"user_id"`
	DraftID     *uuid.UUID             `json:"draft_id,omitempty"`
	Date        time.Time              `json:"date"`
	Type        shared.TransactionType `json:"type"`
	Kind        shared.TransactionKind `json:"kind"`
	Amount      decimal.Decimal        `json:"amount"`
	AccountID   uuid.UUID              `json:"account_id"`
	ToAccountID *uuid.UUID             `json:"to_account_id,omitempty"`
	CategoryID  *uuid.UUID             `json:"category_id,omitempty"`
	Tag         string                 `json:"tag"`
	Note        string                 `json:"note,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Validate enforces the per-type shape rules of a transaction
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("invalid transaction kind %q", t.Kind)
	}

	switch t.Type {
	case shared.TransactionTypeTransfer:
		if t.ToAccountID == nil || *t.ToAccountID == t.AccountID {
			return ErrTransferAccounts
		}
		if t.CategoryID != nil {
			return ErrTransferWithCategory
		}
	case shared.TransactionTypeExpense:
		if t.ToAccountID != nil {
			return ErrUnexpectedToAccount
		}
		if t.CategoryID == nil {
			return ErrExpenseCategory
		}
	case shared.TransactionTypeIncome:
		if t.ToAccountID != nil {
			return ErrUnexpectedToAccount
		}
	default:
		return fmt.Errorf("invalid transaction type %q", t.Type)
	}
	return nil
}

// BalanceEvents returns the ledger deltas this transaction produces.
// Income credits the account, expense debits it, a transfer moves the amount between both accounts.
func (t *Transaction) BalanceEvents() ([]*BalanceEvent, error) {
	txID := t.ID
	switch t.Type {
	case shared.TransactionTypeIncome:
		return []*BalanceEvent{
			NewBalanceEvent(t.BudgetID, t.AccountID, t.Date, t.Amount, shared.BalanceReasonTransaction, &txID),
		}, nil
	case shared.TransactionTypeExpense:
		return []*BalanceEvent{
			NewBalanceEvent(t.BudgetID, t.AccountID, t.Date, t.Amount.Neg(), shared.BalanceReasonTransaction, &txID),
		}, nil
	case shared.TransactionTypeTransfer:
		if t.ToAccountID == nil {
			return nil, ErrTransferAccounts
		}
		return []*BalanceEvent{
			NewBalanceEvent(t.BudgetID, t.AccountID, t.Date, t.Amount.Neg(), shared.BalanceReasonTransfer, &txID),
			NewBalanceEvent(t.BudgetID, *t.ToAccountID, t.Date, t.Amount, shared.BalanceReasonTransfer, &txID),
		}, nil
	}
	return nil, fmt.Errorf("invalid transaction type %q", t.Type)
}
