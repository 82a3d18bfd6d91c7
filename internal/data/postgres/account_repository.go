// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be rebound to a transaction with WithTx so that apply
// writes ledger rows, the draft status and the outbox message atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// ListByBudget returns the budget's accounts ordered by name
func (r *AccountRepository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*account.Account, error) {
	query := `
		SELECT id, budget_id, name, kind, currency, active_from, created_at
		FROM accounts
		WHERE budget_id = $1
		ORDER BY name
	`

	rows, err := r.querier.Query(ctx, query, budgetID)
	if err != nil {
		r.logger.Error("Failed to list accounts", "budget_id", budgetID.String(), "error", err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		var acc account.Account
		if err := rows.Scan(
			&acc.ID,
			&acc.BudgetID,
			&acc.Name,
			&acc.Kind,
			&acc.Currency,
			&acc.ActiveFrom,
			&acc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}

	return accounts, nil
}

// CreateIfAbsent inserts the account; on a case-insensitive name clash the existing row wins
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, acc *account.Account) (*account.Account, bool, error) {
	insert := `
		INSERT INTO accounts (id, budget_id, name, kind, currency, active_from, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (budget_id, lower(name)) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, insert,
		acc.ID,
		acc.BudgetID,
		acc.Name,
		acc.Kind,
		acc.Currency,
		acc.ActiveFrom,
		acc.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account", "name", acc.Name, "error", err)
		return nil, false, fmt.Errorf("failed to create account: %w", err)
	}
	if result.RowsAffected() == 1 {
		return acc, true, nil
	}

	existing, err := r.getByName(ctx, acc.BudgetID, acc.Name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *AccountRepository) getByName(ctx context.Context, budgetID uuid.UUID, name string) (*account.Account, error) {
	query := `
		SELECT id, budget_id, name, kind, currency, active_from, created_at
		FROM accounts
		WHERE budget_id = $1 AND lower(name) = lower($2)
	`

	var acc account.Account
	err := r.querier.QueryRow(ctx, query, budgetID, name).Scan(
		&acc.ID,
		&acc.BudgetID,
		&acc.Name,
		&acc.Kind,
		&acc.Currency,
		&acc.ActiveFrom,
		&acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Name: name}
		}
		r.logger.Error("Failed to get account by name", "name", name, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}
