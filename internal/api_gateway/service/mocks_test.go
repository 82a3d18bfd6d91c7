package service

import (
	"context"
	"time"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/domain/ledger"
	"github.com/family-finance-ledger/internal/statement/apply"
	"github.com/family-finance-ledger/internal/statement/drafting"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockBudgetRepo struct {
	mock.Mock
}

func (m *MockBudgetRepo) HasAccess(ctx context.Context, userID string, budgetID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, budgetID)
	return args.Bool(0), args.Error(1)
}

type MockDraftRepo struct {
	mock.Mock
}

func (m *MockDraftRepo) Create(ctx context.Context, d *draft.StatementDraft) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDraftRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*draft.StatementDraft, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*draft.StatementDraft), args.Error(1)
}

func (m *MockDraftRepo) GetByIDForUpdate(ctx context.Context, userID string, id uuid.UUID) (*draft.StatementDraft, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*draft.StatementDraft), args.Error(1)
}

func (m *MockDraftRepo) Update(ctx context.Context, d *draft.StatementDraft) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDraftRepo) WithTx(tx pgx.Tx) draft.Repository {
	return m.Called(tx).Get(0).(draft.Repository)
}

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*account.Account, error) {
	args := m.Called(ctx, budgetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepo) CreateIfAbsent(ctx context.Context, a *account.Account) (*account.Account, bool, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(*account.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccountRepo) WithTx(tx pgx.Tx) account.Repository {
	return m.Called(tx).Get(0).(account.Repository)
}

type MockCategoryRepo struct {
	mock.Mock
}

func (m *MockCategoryRepo) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*category.Category, error) {
	args := m.Called(ctx, budgetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*category.Category), args.Error(1)
}

func (m *MockCategoryRepo) CreateIfAbsent(ctx context.Context, c *category.Category) (*category.Category, bool, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(*category.Category), args.Bool(1), args.Error(2)
}

func (m *MockCategoryRepo) WithTx(tx pgx.Tx) category.Repository {
	return m.Called(tx).Get(0).(category.Repository)
}

type MockBalanceRepo struct {
	mock.Mock
}

func (m *MockBalanceRepo) Create(ctx context.Context, event *ledger.BalanceEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockBalanceRepo) BalancesAsOf(ctx context.Context, budgetID uuid.UUID, asOf time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, budgetID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockBalanceRepo) WithTx(tx pgx.Tx) ledger.BalanceEventRepository {
	return m.Called(tx).Get(0).(ledger.BalanceEventRepository)
}

type MockDebtRepo struct {
	mock.Mock
}

func (m *MockDebtRepo) GetAsOf(ctx context.Context, budgetID uuid.UUID, date time.Time) (*ledger.DebtTotals, error) {
	args := m.Called(ctx, budgetID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.DebtTotals), args.Error(1)
}

func (m *MockDebtRepo) Upsert(ctx context.Context, budgetID uuid.UUID, totals *ledger.DebtTotals) error {
	return m.Called(ctx, budgetID, totals).Error(0)
}

func (m *MockDebtRepo) WithTx(tx pgx.Tx) ledger.DebtRepository {
	return m.Called(tx).Get(0).(ledger.DebtRepository)
}

type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) RequestDraft(ctx context.Context, statementText string, snapshot any, exchange *draft.Exchange) (*drafting.Result, error) {
	args := m.Called(ctx, statementText, snapshot, exchange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*drafting.Result), args.Error(1)
}

func (m *MockRequester) ReviseDraft(ctx context.Context, input drafting.RevisionInput, snapshot any, exchange *draft.Exchange) (*drafting.Result, error) {
	args := m.Called(ctx, input, snapshot, exchange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*drafting.Result), args.Error(1)
}

func (m *MockRequester) Model() string {
	return "test-model"
}

type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) Apply(ctx context.Context, userID string, draftID uuid.UUID, confirm bool) (*apply.Result, error) {
	args := m.Called(ctx, userID, draftID, confirm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apply.Result), args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Put(ctx context.Context, budgetID uuid.UUID, filename, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, budgetID, filename, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *MockArchive) Fetch(ctx context.Context, uri string) ([]byte, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
