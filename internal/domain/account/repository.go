package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines account persistence operations
type Repository interface {
	ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*Account, error)

	// CreateIfAbsent inserts the account unless a same-named one already exists in the budget.
	// It returns the stored account and whether it was created by this call.
	CreateIfAbsent(ctx context.Context, account *Account) (*Account, bool, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	Name string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.Name
}
