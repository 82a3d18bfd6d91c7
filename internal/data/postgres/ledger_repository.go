package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/family-finance-ledger/internal/domain/ledger"
	"github.com/family-finance-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepository implements ledger.TransactionRepository for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.TransactionRepository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransactionRepository) WithTx(tx pgx.Tx) ledger.TransactionRepository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, t *ledger.Transaction) error {
	query := `
		INSERT INTO transactions (id, budget_id, user_id, draft_id, date, type, kind, amount,
			account_id, to_account_id, category_id, tag, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.BudgetID,
		t.UserID,
		t.DraftID,
		t.Date,
		t.Type,
		t.Kind,
		t.Amount,
		t.AccountID,
		t.ToAccountID,
		t.CategoryID,
		t.Tag,
		t.Note,
		t.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transaction", "id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) ListByDraft(ctx context.Context, draftID uuid.UUID) ([]*ledger.Transaction, error) {
	query := `
		SELECT id, budget_id, user_id, draft_id, date, type, kind, amount,
			account_id, to_account_id, category_id, tag, note, created_at
		FROM transactions
		WHERE draft_id = $1
		ORDER BY date, created_at
	`

	rows, err := r.querier.Query(ctx, query, draftID)
	if err != nil {
		r.logger.Error("Failed to list draft transactions", "draft_id", draftID.String(), "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		if err := rows.Scan(
			&t.ID,
			&t.BudgetID,
			&t.UserID,
			&t.DraftID,
			&t.Date,
			&t.Type,
			&t.Kind,
			&t.Amount,
			&t.AccountID,
			&t.ToAccountID,
			&t.CategoryID,
			&t.Tag,
			&t.Note,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return transactions, nil
}

// BalanceEventRepository implements ledger.BalanceEventRepository for PostgreSQL
type BalanceEventRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewBalanceEventRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.BalanceEventRepository {
	return &BalanceEventRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *BalanceEventRepository) WithTx(tx pgx.Tx) ledger.BalanceEventRepository {
	return &BalanceEventRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *BalanceEventRepository) Create(ctx context.Context, e *ledger.BalanceEvent) error {
	query := `
		INSERT INTO balance_events (id, budget_id, account_id, date, delta, reason, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		e.ID,
		e.BudgetID,
		e.AccountID,
		e.Date,
		e.Delta,
		e.Reason,
		e.TransactionID,
		e.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create balance event",
			"account_id", e.AccountID.String(),
			"reason", string(e.Reason),
			"error", err,
		)
		return fmt.Errorf("failed to create balance event: %w", err)
	}

	return nil
}

func (r *BalanceEventRepository) BalancesAsOf(ctx context.Context, budgetID uuid.UUID, asOf time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	query := `
		SELECT account_id, SUM(delta)
		FROM balance_events
		WHERE budget_id = $1 AND date <= $2
		GROUP BY account_id
	`

	rows, err := r.querier.Query(ctx, query, budgetID, asOf)
	if err != nil {
		r.logger.Error("Failed to sum balances", "budget_id", budgetID.String(), "error", err)
		return nil, fmt.Errorf("failed to sum balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[uuid.UUID]decimal.Decimal)
	for rows.Next() {
		var accountID uuid.UUID
		var balance decimal.Decimal
		if err := rows.Scan(&accountID, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances[accountID] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over balances: %w", err)
	}

	return balances, nil
}

// DebtRepository implements ledger.DebtRepository for PostgreSQL
type DebtRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewDebtRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.DebtRepository {
	return &DebtRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *DebtRepository) WithTx(tx pgx.Tx) ledger.DebtRepository {
	return &DebtRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *DebtRepository) GetAsOf(ctx context.Context, budgetID uuid.UUID, date time.Time) (*ledger.DebtTotals, error) {
	query := `
		SELECT date, credit_cards_total, people_debts_total
		FROM debts
		WHERE budget_id = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT 1
	`

	var totals ledger.DebtTotals
	err := r.querier.QueryRow(ctx, query, budgetID, date).Scan(
		&totals.Date,
		&totals.CreditCards,
		&totals.PeopleDebts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &ledger.DebtTotals{Date: date}, nil
		}
		r.logger.Error("Failed to get debts", "budget_id", budgetID.String(), "error", err)
		return nil, fmt.Errorf("failed to get debts: %w", err)
	}

	return &totals, nil
}

func (r *DebtRepository) Upsert(ctx context.Context, budgetID uuid.UUID, totals *ledger.DebtTotals) error {
	query := `
		INSERT INTO debts (budget_id, date, credit_cards_total, people_debts_total, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (budget_id, date) DO UPDATE
		SET credit_cards_total = EXCLUDED.credit_cards_total,
			people_debts_total = EXCLUDED.people_debts_total,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.querier.Exec(ctx, query,
		budgetID,
		totals.Date,
		totals.CreditCards,
		totals.PeopleDebts,
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert debts", "budget_id", budgetID.String(), "error", err)
		return fmt.Errorf("failed to upsert debts: %w", err)
	}

	return nil
}
