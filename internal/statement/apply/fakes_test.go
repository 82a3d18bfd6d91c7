package apply

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/domain/ledger"
	"github.com/family-finance-ledger/internal/domain/outbox"
	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/family-finance-ledger/internal/statement/resolver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory budget database whose transactions restore a snapshot on error
type memStore struct {
	accounts     []*account.Account
	categories   []*category.Category
	transactions []*ledger.Transaction
	events       []*ledger.BalanceEvent
	debts        map[uuid.UUID][]ledger.DebtTotals
	drafts       map[uuid.UUID]draft.StatementDraft
	messages     []*outbox.Message
	owners       map[uuid.UUID]string

	// failTransactionAt makes the n-th transaction insert fail (1-based, 0 disables)
	failTransactionAt int
	transactionCalls  int

	// failOutbox makes every outbox insert fail
	failOutbox  bool
	outboxCalls int
}

func newMemStore() *memStore {
	return &memStore{
		debts:  map[uuid.UUID][]ledger.DebtTotals{},
		drafts: map[uuid.UUID]draft.StatementDraft{},
		owners: map[uuid.UUID]string{},
	}
}

type memSnapshot struct {
	accounts     []*account.Account
	categories   []*category.Category
	transactions []*ledger.Transaction
	events       []*ledger.BalanceEvent
	debts        map[uuid.UUID][]ledger.DebtTotals
	drafts       map[uuid.UUID]draft.StatementDraft
	messages     []*outbox.Message
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts:     append([]*account.Account(nil), s.accounts...),
		categories:   append([]*category.Category(nil), s.categories...),
		transactions: append([]*ledger.Transaction(nil), s.transactions...),
		events:       append([]*ledger.BalanceEvent(nil), s.events...),
		debts:        map[uuid.UUID][]ledger.DebtTotals{},
		drafts:       map[uuid.UUID]draft.StatementDraft{},
		messages:     append([]*outbox.Message(nil), s.messages...),
	}
	for k, v := range s.debts {
		snap.debts[k] = append([]ledger.DebtTotals(nil), v...)
	}
	for k, v := range s.drafts {
		snap.drafts[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.accounts = snap.accounts
	s.categories = snap.categories
	s.transactions = snap.transactions
	s.events = snap.events
	s.debts = snap.debts
	s.drafts = snap.drafts
	s.messages = snap.messages
}

// ExecuteTx rolls back every write when fn fails
func (s *memStore) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) repositories() Repositories {
	return Repositories{
		Budgets:      &memBudgets{s},
		Drafts:       &memDrafts{s},
		Accounts:     &memAccounts{s},
		Categories:   &memCategories{s},
		Transactions: &memTransactions{s},
		Balances:     &memBalances{s},
		Debts:        &memDebts{s},
		Outbox:       &memOutbox{s},
	}
}

func (s *memStore) putDraft(d *draft.StatementDraft) {
	s.drafts[d.ID] = *d
}

func (s *memStore) draft(id uuid.UUID) draft.StatementDraft {
	return s.drafts[id]
}

func (s *memStore) balances(budgetID uuid.UUID) map[uuid.UUID]decimal.Decimal {
	out := map[uuid.UUID]decimal.Decimal{}
	for _, e := range s.events {
		if e.BudgetID == budgetID {
			out[e.AccountID] = out[e.AccountID].Add(e.Delta)
		}
	}
	return out
}

func (s *memStore) accountByName(name string) *account.Account {
	for _, a := range s.accounts {
		if shared.NameKey(a.Name) == shared.NameKey(name) {
			return a
		}
	}
	return nil
}

func (s *memStore) categoryByName(name string) *category.Category {
	for _, c := range s.categories {
		if shared.NameKey(c.Name) == shared.NameKey(name) {
			return c
		}
	}
	return nil
}

type memBudgets struct{ s *memStore }

func (r *memBudgets) HasAccess(ctx context.Context, userID string, budgetID uuid.UUID) (bool, error) {
	return r.s.owners[budgetID] == userID, nil
}

type memDrafts struct{ s *memStore }

func (r *memDrafts) Create(ctx context.Context, d *draft.StatementDraft) error {
	r.s.drafts[d.ID] = *d
	return nil
}

func (r *memDrafts) GetByID(ctx context.Context, userID string, id uuid.UUID) (*draft.StatementDraft, error) {
	d, ok := r.s.drafts[id]
	if !ok || d.UserID != userID {
		return nil, draft.ErrDraftNotFound{ID: id}
	}
	return &d, nil
}

func (r *memDrafts) GetByIDForUpdate(ctx context.Context, userID string, id uuid.UUID) (*draft.StatementDraft, error) {
	return r.GetByID(ctx, userID, id)
}

// Update only overwrites a draft that is still open, like the SQL status guard
func (r *memDrafts) Update(ctx context.Context, d *draft.StatementDraft) error {
	stored, ok := r.s.drafts[d.ID]
	if !ok || stored.UserID != d.UserID {
		return draft.ErrDraftNotFound{ID: d.ID}
	}
	if stored.Status.IsTerminal() {
		return draft.ErrInvalidTransition{From: stored.Status, To: d.Status}
	}
	r.s.drafts[d.ID] = *d
	return nil
}

func (r *memDrafts) WithTx(tx pgx.Tx) draft.Repository { return r }

type memAccounts struct{ s *memStore }

func (r *memAccounts) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*account.Account, error) {
	var out []*account.Account
	for _, a := range r.s.accounts {
		if a.BudgetID == budgetID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAccounts) CreateIfAbsent(ctx context.Context, a *account.Account) (*account.Account, bool, error) {
	for _, existing := range r.s.accounts {
		if existing.BudgetID == a.BudgetID && shared.NameKey(existing.Name) == shared.NameKey(a.Name) {
			return existing, false, nil
		}
	}
	r.s.accounts = append(r.s.accounts, a)
	return a, true, nil
}

func (r *memAccounts) WithTx(tx pgx.Tx) account.Repository { return r }

type memCategories struct{ s *memStore }

func (r *memCategories) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*category.Category, error) {
	var out []*category.Category
	for _, c := range r.s.categories {
		if c.BudgetID == budgetID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCategories) CreateIfAbsent(ctx context.Context, c *category.Category) (*category.Category, bool, error) {
	for _, existing := range r.s.categories {
		if existing.BudgetID == c.BudgetID && shared.NameKey(existing.Name) == shared.NameKey(c.Name) {
			return existing, false, nil
		}
	}
	r.s.categories = append(r.s.categories, c)
	return c, true, nil
}

func (r *memCategories) WithTx(tx pgx.Tx) category.Repository { return r }

var errInsertFailed = errors.New("insert failed")

type memTransactions struct{ s *memStore }

func (r *memTransactions) Create(ctx context.Context, t *ledger.Transaction) error {
	r.s.transactionCalls++
	if r.s.failTransactionAt > 0 && r.s.transactionCalls == r.s.failTransactionAt {
		return errInsertFailed
	}
	r.s.transactions = append(r.s.transactions, t)
	return nil
}

func (r *memTransactions) ListByDraft(ctx context.Context, draftID uuid.UUID) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	for _, t := range r.s.transactions {
		if t.DraftID != nil && *t.DraftID == draftID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTransactions) WithTx(tx pgx.Tx) ledger.TransactionRepository { return r }

type memBalances struct{ s *memStore }

func (r *memBalances) Create(ctx context.Context, e *ledger.BalanceEvent) error {
	r.s.events = append(r.s.events, e)
	return nil
}

func (r *memBalances) BalancesAsOf(ctx context.Context, budgetID uuid.UUID, asOf time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	out := map[uuid.UUID]decimal.Decimal{}
	for _, e := range r.s.events {
		if e.BudgetID == budgetID && !e.Date.After(asOf) {
			out[e.AccountID] = out[e.AccountID].Add(e.Delta)
		}
	}
	return out, nil
}

func (r *memBalances) WithTx(tx pgx.Tx) ledger.BalanceEventRepository { return r }

type memDebts struct{ s *memStore }

func (r *memDebts) GetAsOf(ctx context.Context, budgetID uuid.UUID, date time.Time) (*ledger.DebtTotals, error) {
	rows := append([]ledger.DebtTotals(nil), r.s.debts[budgetID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	latest := &ledger.DebtTotals{Date: date}
	for _, row := range rows {
		if !row.Date.After(date) {
			row := row
			latest = &row
		}
	}
	return latest, nil
}

func (r *memDebts) Upsert(ctx context.Context, budgetID uuid.UUID, totals *ledger.DebtTotals) error {
	rows := r.s.debts[budgetID]
	for i := range rows {
		if rows[i].Date.Equal(totals.Date) {
			updated := append([]ledger.DebtTotals(nil), rows...)
			updated[i] = *totals
			r.s.debts[budgetID] = updated
			return nil
		}
	}
	r.s.debts[budgetID] = append(append([]ledger.DebtTotals(nil), rows...), *totals)
	return nil
}

func (r *memDebts) WithTx(tx pgx.Tx) ledger.DebtRepository { return r }

type memOutbox struct{ s *memStore }

var errOutboxUnavailable = errors.New("outbox unavailable")

func (r *memOutbox) Create(ctx context.Context, m *outbox.Message) error {
	r.s.outboxCalls++
	if r.s.failOutbox {
		return errOutboxUnavailable
	}
	for _, existing := range r.s.messages {
		if existing.AggregateID == m.AggregateID && existing.EventType == m.EventType {
			return outbox.ErrDuplicateMessage{AggregateID: m.AggregateID}
		}
	}
	m.ID = int64(len(r.s.messages) + 1)
	r.s.messages = append(r.s.messages, m)
	return nil
}

func (r *memOutbox) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	return nil, nil
}

func (r *memOutbox) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return nil
}

func (r *memOutbox) IncrementAttempts(ctx context.Context, id int64) error {
	return nil
}

func (r *memOutbox) GetByAggregateID(ctx context.Context, aggregateID uuid.UUID) (*outbox.Message, error) {
	for _, m := range r.s.messages {
		if m.AggregateID == aggregateID {
			return m, nil
		}
	}
	return nil, outbox.ErrMessageNotFound{}
}

func (r *memOutbox) WithTx(tx pgx.Tx) outbox.Repository { return r }

// seedDraft resolves the payload against the store the way draft creation does
func seedDraft(s *memStore, userID string, budgetID uuid.UUID, payload *draft.ValidatedPayload) *draft.StatementDraft {
	var accounts []*account.Account
	for _, a := range s.accounts {
		if a.BudgetID == budgetID {
			accounts = append(accounts, a)
		}
	}
	var categories []*category.Category
	for _, c := range s.categories {
		if c.BudgetID == budgetID {
			categories = append(categories, c)
		}
	}

	d := draft.NewStatementDraft(userID, budgetID, draft.Source{Filename: "statement.csv"}, "statement", "test-model")
	d.Payload = resolver.Resolve(payload, accounts, categories)
	s.owners[budgetID] = userID
	s.putDraft(d)
	return d
}
