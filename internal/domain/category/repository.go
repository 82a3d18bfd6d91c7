package category

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines category persistence operations
type Repository interface {
	ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*Category, error)

	// CreateIfAbsent inserts the category unless a same-named one already exists in the budget
	CreateIfAbsent(ctx context.Context, category *Category) (*Category, bool, error)
	WithTx(tx pgx.Tx) Repository
}
