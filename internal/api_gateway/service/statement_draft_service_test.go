package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/budget"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/domain/ledger"
	"github.com/family-finance-ledger/internal/platform/llm"
	"github.com/family-finance-ledger/internal/statement/apply"
	"github.com/family-finance-ledger/internal/statement/decoder"
	"github.com/family-finance-ledger/internal/statement/drafting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	budgets    *MockBudgetRepo
	drafts     *MockDraftRepo
	accounts   *MockAccountRepo
	categories *MockCategoryRepo
	balances   *MockBalanceRepo
	debts      *MockDebtRepo
	requester  *MockRequester
	applier    *MockApplier
	archive    *MockArchive
	svc        *StatementDraftServiceImpl
}

func newFixture(t *testing.T, withArchive bool) *fixture {
	t.Helper()
	pool, err := NewWorkerPool(2, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)

	f := &fixture{
		budgets:    &MockBudgetRepo{},
		drafts:     &MockDraftRepo{},
		accounts:   &MockAccountRepo{},
		categories: &MockCategoryRepo{},
		balances:   &MockBalanceRepo{},
		debts:      &MockDebtRepo{},
		requester:  &MockRequester{},
		applier:    &MockApplier{},
	}
	// user-1 owns every budget; other users own none
	f.budgets.On("HasAccess", mock.Anything, "user-1", mock.Anything).Return(true, nil).Maybe()
	f.budgets.On("HasAccess", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Maybe()

	deps := Dependencies{
		Budgets:    f.budgets,
		Drafts:     f.drafts,
		Accounts:   f.accounts,
		Categories: f.categories,
		Balances:   f.balances,
		Debts:      f.debts,
		Requester:  f.requester,
		Applier:    f.applier,
		Pool:       pool,
	}
	if withArchive {
		f.archive = &MockArchive{}
		deps.Archive = f.archive
	}
	f.svc = NewStatementDraftService(newTestLogger(), deps)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) expectContext(budgetID uuid.UUID, asOf time.Time, accounts []*account.Account, balances map[uuid.UUID]decimal.Decimal) {
	f.accounts.On("ListByBudget", mock.Anything, budgetID).Return(accounts, nil).Once()
	f.balances.On("BalancesAsOf", mock.Anything, budgetID, asOf).Return(balances, nil).Once()
	f.categories.On("ListByBudget", mock.Anything, budgetID).Return([]*category.Category{}, nil).Once()
	f.debts.On("GetAsOf", mock.Anything, budgetID, asOf).Return(&ledger.DebtTotals{
		Date:        asOf,
		CreditCards: decimal.NewFromInt(15000),
		PeopleDebts: decimal.Zero,
	}, nil).Once()
}

func groceriesPayload(accountName string) *draft.ValidatedPayload {
	return &draft.ValidatedPayload{
		Operations: []draft.Operation{{
			Date:     "2024-03-01",
			Amount:   draft.NewNumber(decimal.NewFromInt(-500)),
			Type:     draft.OperationExpense,
			Account:  accountName,
			Category: "Groceries",
		}},
		Summary:            json.RawMessage(`{}`),
		AccountsToCreate:   []draft.AccountProposal{},
		CategoriesToCreate: []draft.CategoryProposal{},
		Counterparties:     []string{},
		Warnings:           []string{},
	}
}

func today() time.Time {
	return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
}

func TestStatementDraftService_CreateDraft_FromText(t *testing.T) {
	f := newFixture(t, false)
	budgetID := uuid.New()
	tinkoff := &account.Account{ID: uuid.New(), BudgetID: budgetID, Name: "Tinkoff", Kind: account.KindBank, Currency: "RUB"}

	f.expectContext(budgetID, today(), []*account.Account{tinkoff}, map[uuid.UUID]decimal.Decimal{
		tinkoff.ID: decimal.RequireFromString("1200.50"),
	})

	var exchangeDraftID uuid.UUID
	f.requester.On("RequestDraft", mock.Anything, "01.03 Пятерочка -500",
		mock.MatchedBy(func(snapshot *draft.Context) bool {
			return snapshot.AsOf == "2024-03-15" &&
				snapshot.Source == "sms" &&
				len(snapshot.Accounts) == 1 &&
				snapshot.Accounts[0].Balance.Equal(decimal.RequireFromString("1200.50")) &&
				snapshot.Debts.CreditCardsTotal.Equal(decimal.NewFromInt(15000))
		}),
		mock.MatchedBy(func(exchange *draft.Exchange) bool {
			exchangeDraftID = exchange.DraftID
			return exchange.Kind == draft.ExchangeCreate && exchange.UserID == "user-1" && exchange.BudgetID == budgetID
		}),
	).Return(&drafting.Result{Payload: groceriesPayload("tinkoff"), RawResponse: `{"operations":[]}`, Model: "gpt-4o-mini"}, nil).Once()

	f.drafts.On("Create", mock.Anything, mock.AnythingOfType("*draft.StatementDraft")).Return(nil).Once()

	d, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
		UserID:        "user-1",
		BudgetID:      budgetID,
		StatementText: "  01.03 Пятерочка -500 ",
		Source:        "sms",
	})
	require.NoError(t, err)

	assert.Equal(t, exchangeDraftID, d.ID)
	assert.Equal(t, draft.StatusDraft, d.Status)
	assert.Equal(t, "gpt-4o-mini", d.Model)
	assert.Nil(t, d.SourceFilename)
	require.NotNil(t, d.SourceMime)
	assert.Equal(t, "sms", *d.SourceMime)
	assert.Equal(t, "01.03 Пятерочка -500", d.SourceText)

	require.NotNil(t, d.Payload)
	require.Len(t, d.Payload.NormalizedTransactions, 1)
	require.NotNil(t, d.Payload.NormalizedTransactions[0].AccountID)
	assert.Equal(t, tinkoff.ID, *d.Payload.NormalizedTransactions[0].AccountID)
	assert.Empty(t, d.Payload.MissingAccounts)
	assert.Equal(t, []draft.MissingCategory{{Name: "Groceries", Type: draft.CategoryExpense}}, d.Payload.MissingCategories)
	assert.NotNil(t, d.Payload.Context)

	f.drafts.AssertExpectations(t)
	f.requester.AssertExpectations(t)
}

func TestStatementDraftService_CreateDraft_FromFile(t *testing.T) {
	f := newFixture(t, true)
	budgetID := uuid.New()
	statementDate := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	data := []byte("Дата;Сумма;Описание\n01.03.2024;-500,00;Пятерочка\n")

	f.expectContext(budgetID, statementDate, []*account.Account{}, map[uuid.UUID]decimal.Decimal{})
	f.archive.On("Put", mock.Anything, budgetID, "march.csv", "text/csv", data).
		Return("gs://archive/statements/"+budgetID.String()+"/x/march.csv", nil).Once()
	f.requester.On("RequestDraft", mock.Anything,
		mock.MatchedBy(func(text string) bool { return strings.Contains(text, "Пятерочка") }),
		mock.Anything, mock.Anything,
	).Return(&drafting.Result{Payload: groceriesPayload("Tinkoff"), Model: "gpt-4o-mini"}, nil).Once()
	f.drafts.On("Create", mock.Anything, mock.AnythingOfType("*draft.StatementDraft")).Return(nil).Once()

	d, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
		UserID:        "user-1",
		BudgetID:      budgetID,
		File:          &Upload{Filename: "march.csv", ContentType: "text/csv", Data: data},
		StatementDate: &statementDate,
	})
	require.NoError(t, err)

	require.NotNil(t, d.SourceFilename)
	assert.Equal(t, "march.csv", *d.SourceFilename)
	require.NotNil(t, d.SourceURI)
	assert.True(t, strings.HasPrefix(*d.SourceURI, "gs://archive/statements/"))
	assert.Contains(t, d.SourceText, "Пятерочка")
	assert.Equal(t, "2024-03-31", d.Payload.Context.AsOf)
	assert.Equal(t, []draft.MissingAccount{{Name: "Tinkoff", Kind: account.KindBank}}, d.Payload.MissingAccounts)

	f.archive.AssertExpectations(t)
	f.debts.AssertExpectations(t)
}

func TestStatementDraftService_CreateDraft_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, true)
	budgetID := uuid.New()

	f.expectContext(budgetID, today(), []*account.Account{}, map[uuid.UUID]decimal.Decimal{})
	f.archive.On("Put", mock.Anything, budgetID, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("googleapi: 403")).Once()
	f.requester.On("RequestDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&drafting.Result{Payload: groceriesPayload("Tinkoff"), Model: "m"}, nil).Once()
	f.drafts.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	d, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
		UserID:   "user-1",
		BudgetID: budgetID,
		File:     &Upload{Filename: "march.txt", ContentType: "text/plain", Data: []byte("01.03 Пятерочка -500")},
	})
	require.NoError(t, err)
	assert.Nil(t, d.SourceURI)
}

func TestStatementDraftService_CreateDraft_InputErrors(t *testing.T) {
	t.Run("MissingStatement", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{UserID: "user-1", BudgetID: uuid.New(), StatementText: "   "})
		assert.ErrorIs(t, err, ErrMissingStatement)
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
			UserID:   "user-1",
			BudgetID: uuid.New(),
			File:     &Upload{Filename: "photo.png", ContentType: "image/png", Data: []byte{0x89, 0x50}},
		})
		assert.ErrorIs(t, err, decoder.ErrUnsupportedFormat)
		f.accounts.AssertNotCalled(t, "ListByBudget", mock.Anything, mock.Anything)
	})

	t.Run("UnreadableStatement", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
			UserID:   "user-1",
			BudgetID: uuid.New(),
			File:     &Upload{Filename: "empty.csv", ContentType: "text/csv"},
		})
		var unreadable ErrUnreadableStatement
		require.ErrorAs(t, err, &unreadable)
		assert.ErrorIs(t, err, decoder.ErrEmptyStatement)
	})
}

func TestStatementDraftService_CreateDraft_ForeignBudget(t *testing.T) {
	f := newFixture(t, true)
	budgetID := uuid.New()

	_, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
		UserID:   "user-2",
		BudgetID: budgetID,
		File:     &Upload{Filename: "statement.csv", ContentType: "text/csv", Data: []byte("date,amount\n2024-03-01,-500\n")},
	})
	assert.ErrorIs(t, err, budget.ErrAccessDenied{BudgetID: budgetID})
	f.accounts.AssertNotCalled(t, "ListByBudget", mock.Anything, mock.Anything)
	f.archive.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.requester.AssertNotCalled(t, "RequestDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.drafts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStatementDraftService_CreateDraft_ModelFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason draft.FailureReason
		wantRaw    string
		wantDetail string
	}{
		{
			name:       "ContractViolation",
			err:        drafting.ErrContractViolation{Violations: []string{"operations cannot be empty"}, RawResponse: `{"operations":[]}`},
			wantReason: draft.ReasonContractViolation,
			wantRaw:    `{"operations":[]}`,
			wantDetail: "violations",
		},
		{
			name:       "LLMError",
			err:        llm.ErrLLM{Message: "LLM returned invalid JSON", RawResponse: "Sorry, I can't"},
			wantReason: draft.ReasonLLMError,
			wantRaw:    "Sorry, I can't",
			wantDetail: "message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			budgetID := uuid.New()
			f.expectContext(budgetID, today(), []*account.Account{}, map[uuid.UUID]decimal.Decimal{})
			f.requester.On("RequestDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			f.drafts.On("Create", mock.Anything, mock.MatchedBy(func(d *draft.StatementDraft) bool {
				return d.Status == draft.StatusFailed && d.Payload == nil
			})).Return(nil).Once()

			_, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
				UserID: "user-1", BudgetID: budgetID, StatementText: "01.03 Пятерочка -500",
			})

			var failed ErrDraftingFailed
			require.ErrorAs(t, err, &failed)
			assert.ErrorIs(t, err, tt.err)
			require.NotNil(t, failed.Draft)
			assert.Equal(t, draft.StatusFailed, failed.Draft.Status)
			assert.Equal(t, "test-model", failed.Draft.Model)
			assert.Equal(t, tt.wantRaw, failed.Draft.RawResponse)
			require.NotNil(t, failed.Draft.Failure)
			assert.Equal(t, tt.wantReason, failed.Draft.Failure.Reason)
			assert.Contains(t, failed.Draft.Failure.Details, tt.wantDetail)
			f.drafts.AssertExpectations(t)
		})
	}

	t.Run("InfrastructureErrorIsNotStored", func(t *testing.T) {
		f := newFixture(t, false)
		budgetID := uuid.New()
		f.expectContext(budgetID, today(), []*account.Account{}, map[uuid.UUID]decimal.Decimal{})
		encodeErr := errors.New("failed to encode drafting context")
		f.requester.On("RequestDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, encodeErr).Once()

		_, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
			UserID: "user-1", BudgetID: budgetID, StatementText: "text",
		})
		assert.ErrorIs(t, err, encodeErr)
		assert.False(t, errors.As(err, &ErrDraftingFailed{}))
		f.drafts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("ContextFailure", func(t *testing.T) {
		f := newFixture(t, false)
		budgetID := uuid.New()
		f.accounts.On("ListByBudget", mock.Anything, budgetID).Return(nil, errors.New("db down")).Once()

		_, err := f.svc.CreateDraft(context.Background(), CreateDraftRequest{
			UserID: "user-1", BudgetID: budgetID, StatementText: "text",
		})
		assert.ErrorContains(t, err, "failed to list accounts")
		f.requester.AssertNotCalled(t, "RequestDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func storedDraft(budgetID uuid.UUID, status draft.Status) *draft.StatementDraft {
	d := draft.NewStatementDraft("user-1", budgetID, draft.Source{Mime: "text/plain"}, "01.03 Пятерочка -500", "gpt-4o-mini")
	d.Status = status
	d.Payload = &draft.ResolvedPayload{ValidatedPayload: *groceriesPayload("Tinkoff")}
	return d
}

func TestStatementDraftService_ReviseDraft(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, false)
		budgetID := uuid.New()
		existing := storedDraft(budgetID, draft.StatusDraft)

		f.drafts.On("GetByID", mock.Anything, "user-1", existing.ID).Return(existing, nil).Once()
		f.expectContext(budgetID, today(), []*account.Account{}, map[uuid.UUID]decimal.Decimal{})
		f.requester.On("ReviseDraft", mock.Anything,
			mock.MatchedBy(func(input drafting.RevisionInput) bool {
				return input.Feedback == "Groceries is Продукты" &&
					input.StatementText == existing.SourceText &&
					input.PreviousDraft == existing.Payload
			}),
			mock.Anything,
			mock.MatchedBy(func(exchange *draft.Exchange) bool {
				return exchange.DraftID == existing.ID && exchange.Kind == draft.ExchangeRevise
			}),
		).Return(&drafting.Result{Payload: groceriesPayload("Tinkoff"), RawResponse: "{}", Model: "gpt-4.1"}, nil).Once()
		f.drafts.On("Update", mock.Anything, mock.MatchedBy(func(d *draft.StatementDraft) bool {
			return d.Status == draft.StatusRevised && d.Feedback != nil && *d.Feedback == "Groceries is Продукты"
		})).Return(nil).Once()

		d, err := f.svc.ReviseDraft(context.Background(), "user-1", existing.ID, "Groceries is Продукты")
		require.NoError(t, err)
		assert.Equal(t, draft.StatusRevised, d.Status)
		assert.Equal(t, "gpt-4.1", d.Model)
		assert.NotNil(t, d.Payload.Context)
		f.drafts.AssertExpectations(t)
	})

	t.Run("TerminalDraft", func(t *testing.T) {
		f := newFixture(t, false)
		existing := storedDraft(uuid.New(), draft.StatusApplied)
		f.drafts.On("GetByID", mock.Anything, "user-1", existing.ID).Return(existing, nil).Once()

		_, err := f.svc.ReviseDraft(context.Background(), "user-1", existing.ID, "fix it")
		var transition draft.ErrInvalidTransition
		require.ErrorAs(t, err, &transition)
		assert.Equal(t, draft.StatusApplied, transition.From)
		f.requester.AssertNotCalled(t, "ReviseDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ModelFailureKeepsDraft", func(t *testing.T) {
		f := newFixture(t, false)
		budgetID := uuid.New()
		existing := storedDraft(budgetID, draft.StatusRevised)
		f.drafts.On("GetByID", mock.Anything, "user-1", existing.ID).Return(existing, nil).Once()
		f.expectContext(budgetID, today(), []*account.Account{}, map[uuid.UUID]decimal.Decimal{})
		f.requester.On("ReviseDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, llm.ErrLLM{Message: "LLM response missing choices"}).Once()

		_, err := f.svc.ReviseDraft(context.Background(), "user-1", existing.ID, "fix it")
		var failed ErrDraftingFailed
		require.ErrorAs(t, err, &failed)
		assert.Nil(t, failed.Draft)
		assert.Equal(t, draft.StatusRevised, existing.Status)
		f.drafts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("AppliedWhileRevising", func(t *testing.T) {
		f := newFixture(t, false)
		budgetID := uuid.New()
		existing := storedDraft(budgetID, draft.StatusDraft)
		f.drafts.On("GetByID", mock.Anything, "user-1", existing.ID).Return(existing, nil).Once()
		f.expectContext(budgetID, today(), []*account.Account{}, map[uuid.UUID]decimal.Decimal{})
		f.requester.On("ReviseDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&drafting.Result{Payload: groceriesPayload("Tinkoff"), RawResponse: "{}", Model: "gpt-4.1"}, nil).Once()
		f.drafts.On("Update", mock.Anything, mock.Anything).
			Return(draft.ErrInvalidTransition{From: draft.StatusApplied, To: draft.StatusRevised}).Once()

		_, err := f.svc.ReviseDraft(context.Background(), "user-1", existing.ID, "fix it")
		var transition draft.ErrInvalidTransition
		require.ErrorAs(t, err, &transition)
		assert.Equal(t, draft.StatusApplied, transition.From)
	})

	t.Run("ForeignBudget", func(t *testing.T) {
		f := newFixture(t, false)
		existing := storedDraft(uuid.New(), draft.StatusDraft)
		existing.UserID = "user-2"
		f.drafts.On("GetByID", mock.Anything, "user-2", existing.ID).Return(existing, nil).Once()

		_, err := f.svc.ReviseDraft(context.Background(), "user-2", existing.ID, "fix it")
		assert.ErrorIs(t, err, budget.ErrAccessDenied{})
		f.requester.AssertNotCalled(t, "ReviseDraft", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownDraft", func(t *testing.T) {
		f := newFixture(t, false)
		id := uuid.New()
		f.drafts.On("GetByID", mock.Anything, "user-2", id).Return(nil, draft.ErrDraftNotFound{ID: id}).Once()

		_, err := f.svc.ReviseDraft(context.Background(), "user-2", id, "fix it")
		assert.ErrorIs(t, err, draft.ErrDraftNotFound{})
	})
}

func TestStatementDraftService_ApplyDraft(t *testing.T) {
	f := newFixture(t, false)
	id := uuid.New()
	want := &apply.Result{Draft: storedDraft(uuid.New(), draft.StatusApplied)}
	f.applier.On("Apply", mock.Anything, "user-1", id, true).Return(want, nil).Once()

	got, err := f.svc.ApplyDraft(context.Background(), "user-1", id, true)
	require.NoError(t, err)
	assert.Same(t, want, got)
}
