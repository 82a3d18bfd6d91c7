package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/budget"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/domain/ledger"
	"github.com/family-finance-ledger/internal/platform/archive"
	"github.com/family-finance-ledger/internal/platform/llm"
	"github.com/family-finance-ledger/internal/statement/apply"
	"github.com/family-finance-ledger/internal/statement/decoder"
	"github.com/family-finance-ledger/internal/statement/drafting"
	"github.com/family-finance-ledger/internal/statement/resolver"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const defaultTextMime = "text/plain"

// Dependencies are the collaborators of StatementDraftServiceImpl. Archive may be nil.
type Dependencies struct {
	Budgets    budget.Repository
	Drafts     draft.Repository
	Accounts   account.Repository
	Categories category.Repository
	Balances   ledger.BalanceEventRepository
	Debts      ledger.DebtRepository
	Requester  DraftRequester
	Applier    Applier
	Pool       TaskRunner
	Archive    archive.Store
}

// StatementDraftServiceImpl implements the StatementDraftService interface
type StatementDraftServiceImpl struct {
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time
}

func NewStatementDraftService(logger *slog.Logger, deps Dependencies) *StatementDraftServiceImpl {
	return &StatementDraftServiceImpl{
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

func (s *StatementDraftServiceImpl) CreateDraft(ctx context.Context, req CreateDraftRequest) (*draft.StatementDraft, error) {
	logger := s.logger.With("user_id", req.UserID, "budget_id", req.BudgetID.String())

	if err := budget.Ensure(ctx, s.deps.Budgets, req.UserID, req.BudgetID); err != nil {
		logger.Warn("Statement draft rejected", "error", err)
		return nil, err
	}

	var source draft.Source
	sourceText := strings.TrimSpace(req.StatementText)
	pasted := sourceText != ""
	switch {
	case pasted:
		source.Mime = req.Source
		if source.Mime == "" {
			source.Mime = defaultTextMime
		}
	case req.File != nil:
		text, err := s.decode(ctx, req.File)
		if err != nil {
			logger.Warn("Failed to decode statement", "filename", req.File.Filename, "content_type", req.File.ContentType, "error", err)
			return nil, err
		}
		sourceText = text
		source.Filename = req.File.Filename
		source.Mime = req.File.ContentType
		source.URI = s.archiveUpload(ctx, logger, req.BudgetID, req.File)
	default:
		return nil, ErrMissingStatement
	}

	asOf := s.today()
	if req.StatementDate != nil {
		asOf = *req.StatementDate
	}
	snapshot, accounts, categories, err := s.buildContext(ctx, req.BudgetID, asOf)
	if err != nil {
		return nil, err
	}
	if pasted && req.Source != "" {
		snapshot.Source = req.Source
	}

	draftID := uuid.New()
	exchange := &draft.Exchange{DraftID: draftID, UserID: req.UserID, BudgetID: req.BudgetID, Kind: draft.ExchangeCreate}

	var result *drafting.Result
	err = s.deps.Pool.Run(ctx, func() error {
		r, err := s.deps.Requester.RequestDraft(ctx, sourceText, snapshot, exchange)
		result = r
		return err
	})
	if err != nil {
		failure, raw, ok := draftingFailure(err)
		if !ok {
			return nil, err
		}
		failed := draft.NewStatementDraft(req.UserID, req.BudgetID, source, sourceText, s.deps.Requester.Model())
		failed.ID = draftID
		failed.RawResponse = raw
		if markErr := failed.MarkFailed(failure); markErr != nil {
			return nil, markErr
		}
		if createErr := s.deps.Drafts.Create(ctx, failed); createErr != nil {
			logger.Error("Failed to store failed statement draft", "draft_id", draftID.String(), "error", createErr)
			return nil, ErrDraftingFailed{Err: err}
		}
		logger.Warn("Statement draft stored as failed", "draft_id", draftID.String(), "reason", failure.Reason)
		return nil, ErrDraftingFailed{Draft: failed, Err: err}
	}

	resolved := resolver.Resolve(result.Payload, accounts, categories)
	resolved.Context = snapshot

	d := draft.NewStatementDraft(req.UserID, req.BudgetID, source, sourceText, result.Model)
	d.ID = draftID
	d.Payload = resolved
	d.RawResponse = result.RawResponse

	if err := s.deps.Drafts.Create(ctx, d); err != nil {
		return nil, err
	}

	logger.Info("Statement draft created",
		"draft_id", d.ID.String(),
		"operations", len(resolved.Operations),
		"missing_accounts", len(resolved.MissingAccounts),
		"missing_categories", len(resolved.MissingCategories),
	)
	return d, nil
}

func (s *StatementDraftServiceImpl) ReviseDraft(ctx context.Context, userID string, draftID uuid.UUID, feedback string) (*draft.StatementDraft, error) {
	logger := s.logger.With("user_id", userID, "draft_id", draftID.String())

	d, err := s.deps.Drafts.GetByID(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if !d.Status.CanTransitionTo(draft.StatusRevised) {
		return nil, draft.ErrInvalidTransition{From: d.Status, To: draft.StatusRevised}
	}
	if err := budget.Ensure(ctx, s.deps.Budgets, userID, d.BudgetID); err != nil {
		return nil, err
	}

	snapshot, accounts, categories, err := s.buildContext(ctx, d.BudgetID, s.today())
	if err != nil {
		return nil, err
	}

	input := drafting.RevisionInput{
		StatementText: d.SourceText,
		PreviousDraft: d.Payload,
		Feedback:      feedback,
	}
	exchange := &draft.Exchange{DraftID: d.ID, UserID: userID, BudgetID: d.BudgetID, Kind: draft.ExchangeRevise}

	var result *drafting.Result
	err = s.deps.Pool.Run(ctx, func() error {
		r, err := s.deps.Requester.ReviseDraft(ctx, input, snapshot, exchange)
		result = r
		return err
	})
	if err != nil {
		if _, _, ok := draftingFailure(err); ok {
			logger.Warn("Statement draft revision failed", "error", err)
			return nil, ErrDraftingFailed{Err: err}
		}
		return nil, err
	}

	resolved := resolver.Resolve(result.Payload, accounts, categories)
	resolved.Context = snapshot

	if err := d.Revise(resolved, result.RawResponse, feedback); err != nil {
		return nil, err
	}
	d.Model = result.Model
	if err := s.deps.Drafts.Update(ctx, d); err != nil {
		var transition draft.ErrInvalidTransition
		if errors.As(err, &transition) {
			logger.Warn("Statement draft left open state during revision", "status", string(transition.From))
		}
		return nil, err
	}

	logger.Info("Statement draft revised", "operations", len(resolved.Operations))
	return d, nil
}

func (s *StatementDraftServiceImpl) GetDraft(ctx context.Context, userID string, draftID uuid.UUID) (*draft.StatementDraft, error) {
	return s.deps.Drafts.GetByID(ctx, userID, draftID)
}

func (s *StatementDraftServiceImpl) ApplyDraft(ctx context.Context, userID string, draftID uuid.UUID, confirm bool) (*apply.Result, error) {
	return s.deps.Applier.Apply(ctx, userID, draftID, confirm)
}

// decode runs the decoder on the worker pool. Format detection happens first so an
// unsupported upload is rejected without occupying a worker.
func (s *StatementDraftServiceImpl) decode(ctx context.Context, file *Upload) (string, error) {
	if _, err := decoder.DetectFormat(file.ContentType, file.Filename); err != nil {
		return "", err
	}

	var canonical *decoder.Canonical
	err := s.deps.Pool.Run(ctx, func() error {
		c, err := decoder.Decode(file.Data, file.ContentType, file.Filename)
		canonical = c
		return err
	})
	switch {
	case err == nil:
		return canonical.Text, nil
	case ctx.Err() != nil, errors.Is(err, ants.ErrPoolClosed), errors.Is(err, ants.ErrPoolOverload):
		return "", err
	default:
		return "", ErrUnreadableStatement{Err: err}
	}
}

func (s *StatementDraftServiceImpl) archiveUpload(ctx context.Context, logger *slog.Logger, budgetID uuid.UUID, file *Upload) string {
	if s.deps.Archive == nil {
		return ""
	}
	uri, err := s.deps.Archive.Put(ctx, budgetID, file.Filename, file.ContentType, file.Data)
	if err != nil {
		logger.Warn("Failed to archive statement file", "filename", file.Filename, "error", err)
		return ""
	}
	return uri
}

// buildContext snapshots the budget as of a date: accounts with balances, categories and debts
func (s *StatementDraftServiceImpl) buildContext(ctx context.Context, budgetID uuid.UUID, asOf time.Time) (*draft.Context, []*account.Account, []*category.Category, error) {
	accounts, err := s.deps.Accounts.ListByBudget(ctx, budgetID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	balances, err := s.deps.Balances.BalancesAsOf(ctx, budgetID, asOf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load balances: %w", err)
	}
	categories, err := s.deps.Categories.ListByBudget(ctx, budgetID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list categories: %w", err)
	}
	debts, err := s.deps.Debts.GetAsOf(ctx, budgetID, asOf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load debts: %w", err)
	}

	snapshot := &draft.Context{
		AsOf:       asOf.Format(time.DateOnly),
		Accounts:   make([]draft.ContextAccount, 0, len(accounts)),
		Categories: make([]draft.ContextCategory, 0, len(categories)),
		Debts: draft.ContextDebts{
			CreditCardsTotal: debts.CreditCards,
			PeopleDebtsTotal: debts.PeopleDebts,
		},
	}
	for _, a := range accounts {
		snapshot.Accounts = append(snapshot.Accounts, draft.ContextAccount{
			ID:       a.ID,
			Name:     a.Name,
			Kind:     a.Kind,
			Currency: a.Currency,
			Balance:  balances[a.ID],
		})
	}
	for _, c := range categories {
		snapshot.Categories = append(snapshot.Categories, draft.ContextCategory{
			ID:       c.ID,
			Name:     c.Name,
			ParentID: c.ParentID,
		})
	}
	return snapshot, accounts, categories, nil
}

func (s *StatementDraftServiceImpl) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// draftingFailure maps model-side errors to the failure stored on the draft
func draftingFailure(err error) (draft.Failure, string, bool) {
	var contractErr drafting.ErrContractViolation
	if errors.As(err, &contractErr) {
		return draft.Failure{
			Reason:  draft.ReasonContractViolation,
			Details: map[string]any{"violations": contractErr.Violations},
		}, contractErr.RawResponse, true
	}
	var llmErr llm.ErrLLM
	if errors.As(err, &llmErr) {
		return draft.Failure{
			Reason:  draft.ReasonLLMError,
			Details: map[string]any{"message": llmErr.Message},
		}, llmErr.RawResponse, true
	}
	return draft.Failure{}, "", false
}
