// Package budget answers who may work with a budget. Budgets themselves are owned elsewhere.
package budget

import (
	"context"

	"github.com/google/uuid"
)

// Repository checks budget ownership
type Repository interface {
	HasAccess(ctx context.Context, userID string, budgetID uuid.UUID) (bool, error)
}

// ErrAccessDenied is returned when the budget does not exist or belongs to another user
type ErrAccessDenied struct {
	BudgetID uuid.UUID
}

func (e ErrAccessDenied) Error() string {
	return "budget not found for user: " + e.BudgetID.String()
}

// Is matches any ErrAccessDenied when the target carries no budget id
func (e ErrAccessDenied) Is(target error) bool {
	t, ok := target.(ErrAccessDenied)
	if !ok {
		return false
	}
	return t.BudgetID == uuid.Nil || t.BudgetID == e.BudgetID
}

// Ensure returns ErrAccessDenied unless userID owns budgetID
func Ensure(ctx context.Context, repo Repository, userID string, budgetID uuid.UUID) error {
	ok, err := repo.HasAccess(ctx, userID, budgetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccessDenied{BudgetID: budgetID}
	}
	return nil
}
