// Package apply commits a confirmed statement draft into the budget ledger.
// Everything after validation runs in one database transaction: the draft ends
// applied with all its effects visible, or failed with none of them.
package apply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/budget"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/domain/ledger"
	"github.com/family-finance-ledger/internal/domain/outbox"
	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxRunner runs fn inside a database transaction, rolling back when it returns an error
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Repositories groups the stores apply reads and writes
type Repositories struct {
	Budgets      budget.Repository
	Drafts       draft.Repository
	Accounts     account.Repository
	Categories   category.Repository
	Transactions ledger.TransactionRepository
	Balances     ledger.BalanceEventRepository
	Debts        ledger.DebtRepository
	Outbox       outbox.Repository
}

// Result describes a committed apply
type Result struct {
	Draft               *draft.StatementDraft
	CreatedTransactions []*ledger.Transaction
	CreatedAccounts     []*account.Account
	CreatedCategories   []*category.Category
	BalanceEvents       []*ledger.BalanceEvent
	PreviousDebts       *ledger.DebtTotals
	Errors              []string
}

type Orchestrator struct {
	db     TxRunner
	repos  Repositories
	logger *slog.Logger
}

func NewOrchestrator(db TxRunner, repos Repositories, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		db:     db,
		repos:  repos,
		logger: logger,
	}
}

// Apply commits the draft. Business failures come back as ErrApply; an unknown or
// foreign draft comes back as draft.ErrDraftNotFound and a budget the user no longer
// owns as budget.ErrAccessDenied.
func (o *Orchestrator) Apply(ctx context.Context, userID string, draftID uuid.UUID, confirm bool) (*Result, error) {
	if !confirm {
		return nil, ErrApply{Reason: ReasonConfirmationRequired}
	}

	d, err := o.repos.Drafts.GetByID(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if err := budget.Ensure(ctx, o.repos.Budgets, userID, d.BudgetID); err != nil {
		return nil, err
	}
	if err := guard(d); err != nil {
		return nil, err
	}

	accounts, err := o.repos.Accounts.ListByBudget(ctx, d.BudgetID)
	if err != nil {
		return nil, o.fail(ctx, d, ErrApply{Reason: ReasonInternalError, Err: err})
	}
	categories, err := o.repos.Categories.ListByBudget(ctx, d.BudgetID)
	if err != nil {
		return nil, o.fail(ctx, d, ErrApply{Reason: ReasonInternalError, Err: err})
	}

	p, err := buildPlan(d.Payload, accounts, categories)
	if err != nil {
		var applyErr ErrApply
		if !errors.As(err, &applyErr) {
			applyErr = ErrApply{Reason: ReasonInternalError, Err: err}
		}
		return nil, o.fail(ctx, d, applyErr)
	}

	var result *Result
	err = o.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := o.repos.Drafts.WithTx(tx).GetByIDForUpdate(ctx, userID, draftID)
		if err != nil {
			return err
		}
		if err := guard(locked); err != nil {
			return err
		}

		result, err = o.materialize(ctx, tx, locked, p)
		return err
	})
	if err != nil {
		var applyErr ErrApply
		if errors.As(err, &applyErr) && applyErr.Conflict {
			return nil, applyErr
		}
		if !errors.As(err, &applyErr) {
			applyErr = ErrApply{Reason: ReasonInternalError, Err: err}
		}
		return nil, o.fail(ctx, d, applyErr)
	}

	o.logger.Info("Statement draft applied",
		"draft_id", draftID.String(),
		"budget_id", d.BudgetID.String(),
		"transactions", len(result.CreatedTransactions),
		"accounts_created", len(result.CreatedAccounts),
		"categories_created", len(result.CreatedCategories))
	return result, nil
}

// guard rejects drafts that already reached a terminal state
func guard(d *draft.StatementDraft) error {
	switch d.Status {
	case draft.StatusApplied:
		return ErrApply{Reason: ReasonAlreadyApplied, Conflict: true}
	case draft.StatusFailed:
		e := ErrApply{Reason: ReasonInternalError, Conflict: true}
		if d.Failure != nil {
			e.Reason = Reason(d.Failure.Reason)
			e.Details = d.Failure.Details
		}
		return e
	}
	return nil
}

// fail stores the failure on the draft outside of the rolled back transaction
func (o *Orchestrator) fail(ctx context.Context, d *draft.StatementDraft, applyErr ErrApply) error {
	o.logger.Error("Statement draft apply failed",
		"draft_id", d.ID.String(),
		"reason", string(applyErr.Reason),
		"error", applyErr.Err)

	if applyErr.Reason == ReasonInternalError {
		// Internals stay in the log
		applyErr.Details = nil
	}

	if err := d.MarkFailed(applyErr.failure()); err != nil {
		o.logger.Error("Failed to mark statement draft failed", "draft_id", d.ID.String(), "error", err)
		return applyErr
	}
	if err := o.repos.Drafts.Update(ctx, d); err != nil {
		o.logger.Error("Failed to persist statement draft failure", "draft_id", d.ID.String(), "error", err)
	}
	return applyErr
}

// materialize performs every write of an apply in order: categories, accounts, the default
// category, transactions with their balance events, balance adjustments, debts, then the draft.
func (o *Orchestrator) materialize(ctx context.Context, tx pgx.Tx, d *draft.StatementDraft, p *plan) (*Result, error) {
	accountsRepo := o.repos.Accounts.WithTx(tx)
	categoriesRepo := o.repos.Categories.WithTx(tx)
	transactionsRepo := o.repos.Transactions.WithTx(tx)
	balancesRepo := o.repos.Balances.WithTx(tx)

	result := &Result{Draft: d, Errors: []string{}}

	categoryIDs, err := o.createCategories(ctx, categoriesRepo, d.BudgetID, p, result)
	if err != nil {
		return nil, err
	}
	accountIDs, err := o.createAccounts(ctx, accountsRepo, d.BudgetID, p, result)
	if err != nil {
		return nil, err
	}

	defaultCategory, err := o.ensureDefaultCategory(ctx, categoriesRepo, d.BudgetID, p, categoryIDs, result)
	if err != nil {
		return nil, err
	}

	for _, op := range p.operations {
		transaction, err := buildTransaction(d, op, accountIDs, categoryIDs, defaultCategory)
		if err != nil {
			return nil, err
		}
		if err := transactionsRepo.Create(ctx, transaction); err != nil {
			return nil, fmt.Errorf("failed to create transaction for operation %d: %w", op.Index, err)
		}
		events, err := transaction.BalanceEvents()
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			if err := balancesRepo.Create(ctx, event); err != nil {
				return nil, fmt.Errorf("failed to create balance event for operation %d: %w", op.Index, err)
			}
		}
		result.CreatedTransactions = append(result.CreatedTransactions, transaction)
		result.BalanceEvents = append(result.BalanceEvents, events...)
	}

	for _, adj := range p.adjustments {
		accountID, ok := accountIDs[shared.NameKey(adj.accountName)]
		if !ok {
			return nil, unresolvedAccount(adj.index, "account_name", adj.accountName)
		}
		event := ledger.NewBalanceEvent(d.BudgetID, accountID, adj.date, adj.delta, shared.BalanceReasonReconcileAdjust, nil)
		if err := balancesRepo.Create(ctx, event); err != nil {
			return nil, fmt.Errorf("failed to create balance adjustment %d: %w", adj.index, err)
		}
		result.BalanceEvents = append(result.BalanceEvents, event)
	}

	if p.debts != nil {
		debtsRepo := o.repos.Debts.WithTx(tx)
		previous, err := debtsRepo.GetAsOf(ctx, d.BudgetID, p.debts.date)
		if err != nil {
			return nil, fmt.Errorf("failed to read debts before update: %w", err)
		}
		result.PreviousDebts = previous
		if err := debtsRepo.Upsert(ctx, d.BudgetID, &ledger.DebtTotals{
			Date:        p.debts.date,
			CreditCards: p.debts.creditCards,
			PeopleDebts: p.debts.peopleDebts,
		}); err != nil {
			return nil, fmt.Errorf("failed to update debts: %w", err)
		}
	}

	if err := d.MarkApplied(); err != nil {
		return nil, err
	}
	if err := o.repos.Drafts.WithTx(tx).Update(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to mark draft applied: %w", err)
	}

	message, err := outbox.NewDraftAppliedMessage(appliedEvent(d, result))
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox message: %w", err)
	}
	if err := o.repos.Outbox.WithTx(tx).Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to enqueue applied event: %w", err)
	}

	return result, nil
}

func (o *Orchestrator) createCategories(
	ctx context.Context,
	repo category.Repository,
	budgetID uuid.UUID,
	p *plan,
	result *Result,
) (map[string]uuid.UUID, error) {
	existing, err := repo.ListByBudget(ctx, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, c := range existing {
		ids[shared.NameKey(c.Name)] = c.ID
	}

	for _, missing := range p.missingCategories {
		key := shared.NameKey(missing.Name)
		if key == "" {
			continue
		}
		if _, ok := ids[key]; ok {
			continue
		}

		var parentID *uuid.UUID
		if id, ok := ids[shared.NameKey(missing.Parent)]; ok && missing.Parent != "" {
			parentID = &id
		}
		stored, err := o.createCategory(ctx, repo, budgetID, missing.Name, parentID, result)
		if err != nil {
			return nil, err
		}
		ids[key] = stored.ID
	}
	return ids, nil
}

func (o *Orchestrator) createCategory(
	ctx context.Context,
	repo category.Repository,
	budgetID uuid.UUID,
	name string,
	parentID *uuid.UUID,
	result *Result,
) (*category.Category, error) {
	c, err := category.NewCategory(budgetID, name, parentID)
	if err != nil {
		return nil, err
	}
	stored, created, err := repo.CreateIfAbsent(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	if created {
		result.CreatedCategories = append(result.CreatedCategories, stored)
	}
	return stored, nil
}

func (o *Orchestrator) createAccounts(
	ctx context.Context,
	repo account.Repository,
	budgetID uuid.UUID,
	p *plan,
	result *Result,
) (map[string]uuid.UUID, error) {
	existing, err := repo.ListByBudget(ctx, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, a := range existing {
		ids[shared.NameKey(a.Name)] = a.ID
	}

	activeFrom := p.earliest
	if activeFrom.IsZero() {
		activeFrom = time.Now().UTC().Truncate(24 * time.Hour)
	}

	for _, missing := range p.missingAccounts {
		key := shared.NameKey(missing.Name)
		if key == "" {
			continue
		}
		if _, ok := ids[key]; ok {
			continue
		}

		a, err := account.NewAccount(budgetID, missing.Name, missing.Kind, missing.Currency, activeFrom)
		if err != nil {
			return nil, err
		}
		stored, created, err := repo.CreateIfAbsent(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("failed to create account %q: %w", missing.Name, err)
		}
		if created {
			result.CreatedAccounts = append(result.CreatedAccounts, stored)
		}
		ids[key] = stored.ID
	}
	return ids, nil
}

// ensureDefaultCategory returns the catch-all category when some expense or fee has no category
func (o *Orchestrator) ensureDefaultCategory(
	ctx context.Context,
	repo category.Repository,
	budgetID uuid.UUID,
	p *plan,
	ids map[string]uuid.UUID,
	result *Result,
) (*uuid.UUID, error) {
	needed := false
	for _, op := range p.operations {
		if op.Type.NeedsCategory() && op.CategoryName == "" && op.CategoryID == nil {
			needed = true
			break
		}
	}
	if !needed {
		return nil, nil
	}

	key := shared.NameKey(category.DefaultName)
	if id, ok := ids[key]; ok {
		return &id, nil
	}
	stored, err := o.createCategory(ctx, repo, budgetID, category.DefaultName, nil, result)
	if err != nil {
		return nil, err
	}
	ids[key] = stored.ID
	return &stored.ID, nil
}

func resolveID(id *uuid.UUID, name string, ids map[string]uuid.UUID) (uuid.UUID, bool) {
	if key := shared.NameKey(name); key != "" {
		if resolved, ok := ids[key]; ok {
			return resolved, true
		}
	}
	if id != nil {
		return *id, true
	}
	return uuid.Nil, false
}

// buildTransaction turns one planned operation into a ledger transaction.
// Fees are stored as expenses; a transfer with a positive amount flows into the statement account.
func buildTransaction(
	d *draft.StatementDraft,
	op plannedOperation,
	accountIDs, categoryIDs map[string]uuid.UUID,
	defaultCategory *uuid.UUID,
) (*ledger.Transaction, error) {
	accountID, ok := resolveID(op.AccountID, op.AccountName, accountIDs)
	if !ok {
		return nil, unresolvedAccount(op.Index, "account", op.AccountName)
	}

	draftID := d.ID
	transaction := &ledger.Transaction{
		ID:        uuid.New(),
		BudgetID:  d.BudgetID,
		UserID:    d.UserID,
		DraftID:   &draftID,
		Date:      op.date,
		Kind:      shared.TransactionKindNormal,
		Amount:    op.amount.Abs(),
		AccountID: accountID,
		Tag:       ledger.DefaultTag,
		Note:      op.Note,
		CreatedAt: time.Now().UTC(),
	}

	switch op.Type {
	case draft.OperationIncome:
		transaction.Type = shared.TransactionTypeIncome
	case draft.OperationExpense, draft.OperationFee:
		transaction.Type = shared.TransactionTypeExpense
	case draft.OperationTransfer:
		transaction.Type = shared.TransactionTypeTransfer
		transaction.Kind = shared.TransactionKindTransfer
	default:
		return nil, fmt.Errorf("operation %d has unknown type %q", op.Index, op.Type)
	}

	switch op.Type {
	case draft.OperationTransfer:
		toID, ok := resolveID(op.ToAccountID, op.ToAccountName, accountIDs)
		if !ok {
			return nil, unresolvedAccount(op.Index, "to_account", op.ToAccountName)
		}
		if toID == accountID {
			return nil, invalidPayload(fieldError{
				Section:  sectionOperations,
				Index:    op.Index,
				Field:    "to_account",
				Value:    op.ToAccountName,
				Expected: expectedOther,
			})
		}
		if op.amount.IsPositive() {
			accountID, toID = toID, accountID
			transaction.AccountID = accountID
		}
		transaction.ToAccountID = &toID
	default:
		if categoryID, ok := resolveID(op.CategoryID, op.CategoryName, categoryIDs); ok {
			transaction.CategoryID = &categoryID
		} else if op.CategoryName != "" {
			return nil, fmt.Errorf("operation %d category %q was not materialized", op.Index, op.CategoryName)
		} else if op.Type.NeedsCategory() {
			transaction.CategoryID = defaultCategory
		}
	}

	if op.HasDebt() {
		transaction.Kind = shared.TransactionKindDebt
		note, err := json.Marshal(debtNote{Debt: op.Debt, Note: op.Note})
		if err != nil {
			return nil, fmt.Errorf("operation %d has malformed debt metadata: %w", op.Index, err)
		}
		transaction.Note = string(note)
	}

	if err := transaction.Validate(); err != nil {
		return nil, fmt.Errorf("operation %d produced an invalid transaction: %w", op.Index, err)
	}
	return transaction, nil
}

// debtNote is stored as the note of debt transactions
type debtNote struct {
	Debt json.RawMessage `json:"debt"`
	Note string          `json:"note,omitempty"`
}

func appliedEvent(d *draft.StatementDraft, result *Result) *outbox.DraftAppliedEvent {
	event := &outbox.DraftAppliedEvent{
		DraftID:            d.ID,
		BudgetID:           d.BudgetID,
		UserID:             d.UserID,
		TransactionIDs:     make([]uuid.UUID, 0, len(result.CreatedTransactions)),
		CreatedAccountIDs:  make([]uuid.UUID, 0, len(result.CreatedAccounts)),
		CreatedCategoryIDs: make([]uuid.UUID, 0, len(result.CreatedCategories)),
		BalanceEventIDs:    make([]uuid.UUID, 0, len(result.BalanceEvents)),
		PreviousDebts:      result.PreviousDebts,
		AppliedAt:          d.UpdatedAt,
	}
	for _, t := range result.CreatedTransactions {
		event.TransactionIDs = append(event.TransactionIDs, t.ID)
	}
	for _, a := range result.CreatedAccounts {
		event.CreatedAccountIDs = append(event.CreatedAccountIDs, a.ID)
	}
	for _, c := range result.CreatedCategories {
		event.CreatedCategoryIDs = append(event.CreatedCategoryIDs, c.ID)
	}
	for _, e := range result.BalanceEvents {
		event.BalanceEventIDs = append(event.BalanceEventIDs, e.ID)
	}
	return event
}
