package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/family-finance-ledger/internal/domain/budget"
	"github.com/family-finance-ledger/internal/platform/persistence"
	"github.com/google/uuid"
)

type BudgetRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewBudgetRepository(logger *slog.Logger, db *persistence.PostgresDB) budget.Repository {
	return &BudgetRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *BudgetRepository) HasAccess(ctx context.Context, userID string, budgetID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM budgets WHERE id = $1 AND user_id = $2)`

	var ok bool
	if err := r.querier.QueryRow(ctx, query, budgetID, userID).Scan(&ok); err != nil {
		r.logger.Error("Failed to check budget access", "budget_id", budgetID.String(), "error", err)
		return false, fmt.Errorf("failed to check budget access: %w", err)
	}
	return ok, nil
}
