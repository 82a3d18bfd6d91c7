package shared

import "fmt"

// TransactionType is the materialized direction of a transaction
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// TransactionKind classifies a transaction independently of its direction
type TransactionKind string

const (
	TransactionKindNormal       TransactionKind = "normal"
	TransactionKindTransfer     TransactionKind = "transfer"
	TransactionKindDebt         TransactionKind = "debt"
	TransactionKindGoalTransfer TransactionKind = "goal_transfer"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindNormal, TransactionKindTransfer, TransactionKindDebt, TransactionKindGoalTransfer:
		return true
	}
	return false
}

// BalanceEventReason tags every signed delta in the balance ledger
type BalanceEventReason string

const (
	BalanceReasonTransaction     BalanceEventReason = "transaction"
	BalanceReasonTransfer        BalanceEventReason = "transfer"
	BalanceReasonReconcileAdjust BalanceEventReason = "reconcile_adjust"
	BalanceReasonManualAdjust    BalanceEventReason = "manual_adjust"
	BalanceReasonGoalTransfer    BalanceEventReason = "goal_transfer"
	BalanceReasonInitial         BalanceEventReason = "initial"
)

func (r BalanceEventReason) Valid() bool {
	switch r {
	case BalanceReasonTransaction,
		BalanceReasonTransfer,
		BalanceReasonReconcileAdjust,
		BalanceReasonManualAdjust,
		BalanceReasonGoalTransfer,
		BalanceReasonInitial:
		return true
	}
	return false
}

// ParseBalanceEventReason rejects reasons this build does not know about
func ParseBalanceEventReason(raw string) (BalanceEventReason, error) {
	r := BalanceEventReason(raw)
	if !r.Valid() {
		return "", fmt.Errorf("unknown balance event reason %q", raw)
	}
	return r, nil
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
