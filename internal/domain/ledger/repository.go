package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepository persists materialized transactions
type TransactionRepository interface {
	Create(ctx context.Context, transaction *Transaction) error
	ListByDraft(ctx context.Context, draftID uuid.UUID) ([]*Transaction, error)
	WithTx(tx pgx.Tx) TransactionRepository
}

// BalanceEventRepository persists the balance ledger
type BalanceEventRepository interface {
	Create(ctx context.Context, event *BalanceEvent) error

	// BalancesAsOf sums deltas per account for every event dated on or before asOf
	BalancesAsOf(ctx context.Context, budgetID uuid.UUID, asOf time.Time) (map[uuid.UUID]decimal.Decimal, error)
	WithTx(tx pgx.Tx) BalanceEventRepository
}

// DebtRepository stores the per-date debt totals of a budget
type DebtRepository interface {
	// GetAsOf returns the latest totals dated on or before the date, or zero totals when none exist
	GetAsOf(ctx context.Context, budgetID uuid.UUID, date time.Time) (*DebtTotals, error)
	Upsert(ctx context.Context, budgetID uuid.UUID, totals *DebtTotals) error
	WithTx(tx pgx.Tx) DebtRepository
}
