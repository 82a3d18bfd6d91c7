package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CategoryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewCategoryRepository(logger *slog.Logger, db *persistence.PostgresDB) category.Repository {
	return &CategoryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *CategoryRepository) WithTx(tx pgx.Tx) category.Repository {
	return &CategoryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *CategoryRepository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*category.Category, error) {
	query := `
		SELECT id, budget_id, name, parent_id, created_at
		FROM categories
		WHERE budget_id = $1
		ORDER BY name
	`

	rows, err := r.querier.Query(ctx, query, budgetID)
	if err != nil {
		r.logger.Error("Failed to list categories", "budget_id", budgetID.String(), "error", err)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*category.Category
	for rows.Next() {
		var c category.Category
		if err := rows.Scan(&c.ID, &c.BudgetID, &c.Name, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over categories: %w", err)
	}

	return categories, nil
}

// CreateIfAbsent inserts the category or returns the same-named one already in the budget.
// The upsert touches the existing row so RETURNING always yields the stored values.
func (r *CategoryRepository) CreateIfAbsent(ctx context.Context, c *category.Category) (*category.Category, bool, error) {
	query := `
		INSERT INTO categories (id, budget_id, name, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (budget_id, lower(name)) DO UPDATE SET name = categories.name
		RETURNING id, budget_id, name, parent_id, created_at
	`

	var stored category.Category
	err := r.querier.QueryRow(ctx, query, c.ID, c.BudgetID, c.Name, c.ParentID, c.CreatedAt).Scan(
		&stored.ID,
		&stored.BudgetID,
		&stored.Name,
		&stored.ParentID,
		&stored.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create category", "name", c.Name, "error", err)
		return nil, false, fmt.Errorf("failed to create category: %w", err)
	}

	return &stored, stored.ID == c.ID, nil
}
