package apply

import (
	"strings"
	"time"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	sectionOperations  = "operations"
	sectionAdjustments = "balance_adjustments"
	sectionDebts       = "debts"

	// amountScale matches the NUMERIC(18, 2) money columns
	amountScale = 2

	expectedDate      = "ISO-8601 date (YYYY-MM-DD)"
	expectedNumber    = "number with a non-zero value in cents"
	expectedAnyNumber = "number"
	expectedType      = "one of income, expense, transfer, fee"
	expectedAccount   = "existing account or one listed in missing_accounts"
	expectedCategory  = "existing category or one listed in missing_categories"
	expectedOther     = "account different from account"
)

// plannedOperation is a validated operation with parsed values
type plannedOperation struct {
	draft.ResolvedOperation
	date   time.Time
	amount decimal.Decimal
}

type plannedAdjustment struct {
	index       int
	accountName string
	date        time.Time
	delta       decimal.Decimal
}

type plannedDebts struct {
	date        time.Time
	creditCards decimal.Decimal
	peopleDebts decimal.Decimal
}

// plan is everything apply will write, checked before any mutation
type plan struct {
	operations        []plannedOperation
	adjustments       []plannedAdjustment
	debts             *plannedDebts
	missingAccounts   []draft.MissingAccount
	missingCategories []draft.MissingCategory
	earliest          time.Time
}

// knownNames answers whether a reference can be satisfied by an existing or creatable entity
type knownNames struct {
	ids   map[uuid.UUID]bool
	names map[string]bool
}

func newKnownNames() knownNames {
	return knownNames{ids: map[uuid.UUID]bool{}, names: map[string]bool{}}
}

func (k knownNames) resolvable(id *uuid.UUID, name string) bool {
	if id != nil && k.ids[*id] {
		return true
	}
	key := shared.NameKey(name)
	return key != "" && k.names[key]
}

// buildPlan runs strict validation over the resolved payload. The first violation wins.
func buildPlan(payload *draft.ResolvedPayload, accounts []*account.Account, categories []*category.Category) (*plan, error) {
	if payload == nil || len(payload.NormalizedTransactions) == 0 {
		return nil, invalidPayload(fieldError{
			Section:  sectionOperations,
			Index:    0,
			Field:    sectionOperations,
			Value:    nil,
			Expected: "non-empty list of operations",
		})
	}

	knownAccounts := newKnownNames()
	for _, a := range accounts {
		knownAccounts.ids[a.ID] = true
		knownAccounts.names[shared.NameKey(a.Name)] = true
	}
	for _, m := range payload.MissingAccounts {
		knownAccounts.names[shared.NameKey(m.Name)] = true
	}

	knownCategories := newKnownNames()
	for _, c := range categories {
		knownCategories.ids[c.ID] = true
		knownCategories.names[shared.NameKey(c.Name)] = true
	}
	for _, m := range payload.MissingCategories {
		knownCategories.names[shared.NameKey(m.Name)] = true
	}

	p := &plan{
		missingAccounts:   payload.MissingAccounts,
		missingCategories: payload.MissingCategories,
	}

	for i, op := range payload.NormalizedTransactions {
		planned, err := validateOperation(i, op, knownAccounts, knownCategories)
		if err != nil {
			return nil, err
		}
		if p.earliest.IsZero() || planned.date.Before(p.earliest) {
			p.earliest = planned.date
		}
		p.operations = append(p.operations, planned)
	}

	for i, adj := range payload.BalanceAdjustments {
		fe := fieldError{Section: sectionAdjustments, Index: i}
		date, ok := parseDate(adj.Date)
		if !ok {
			fe.Field, fe.Value, fe.Expected = "date", adj.Date, expectedDate
			return nil, invalidPayload(fe)
		}
		delta, err := adj.Delta.Decimal()
		if err != nil {
			fe.Field, fe.Value, fe.Expected = "delta", adj.Delta.Value(), expectedAnyNumber
			return nil, invalidPayload(fe)
		}
		if !knownAccounts.resolvable(nil, adj.AccountName) {
			fe.Field, fe.Value, fe.Expected = "account_name", adj.AccountName, expectedAccount
			return nil, invalidPayload(fe)
		}
		p.adjustments = append(p.adjustments, plannedAdjustment{
			index:       i,
			accountName: strings.TrimSpace(adj.AccountName),
			date:        date,
			delta:       delta,
		})
	}

	if payload.Debts != nil {
		fe := fieldError{Section: sectionDebts}
		date, ok := parseDate(payload.Debts.Date)
		if !ok {
			fe.Field, fe.Value, fe.Expected = "date", payload.Debts.Date, expectedDate
			return nil, invalidPayload(fe)
		}
		cards, err := payload.Debts.CreditCardsTotal.Decimal()
		if err != nil {
			fe.Field, fe.Value, fe.Expected = "credit_cards_total", payload.Debts.CreditCardsTotal.Value(), expectedAnyNumber
			return nil, invalidPayload(fe)
		}
		people, err := payload.Debts.PeopleDebtsTotal.Decimal()
		if err != nil {
			fe.Field, fe.Value, fe.Expected = "people_debts_total", payload.Debts.PeopleDebtsTotal.Value(), expectedAnyNumber
			return nil, invalidPayload(fe)
		}
		p.debts = &plannedDebts{date: date, creditCards: cards, peopleDebts: people}
	}

	return p, nil
}

func validateOperation(i int, op draft.ResolvedOperation, accounts, categories knownNames) (plannedOperation, error) {
	fe := fieldError{Section: sectionOperations, Index: i}

	date, ok := parseDate(op.Date)
	if !ok {
		fe.Field, fe.Value, fe.Expected = "date", op.Date, expectedDate
		return plannedOperation{}, invalidPayload(fe)
	}

	amount, err := op.Amount.Decimal()
	if err != nil || amount.Round(amountScale).IsZero() {
		fe.Field, fe.Value, fe.Expected = "amount", op.Amount.Value(), expectedNumber
		return plannedOperation{}, invalidPayload(fe)
	}
	amount = amount.Round(amountScale)

	if !op.Type.Valid() {
		fe.Field, fe.Value, fe.Expected = "type", string(op.Type), expectedType
		return plannedOperation{}, invalidPayload(fe)
	}

	if !accounts.resolvable(op.AccountID, op.AccountName) {
		fe.Field, fe.Value, fe.Expected = "account", op.AccountName, expectedAccount
		return plannedOperation{}, invalidPayload(fe)
	}

	if op.Type == draft.OperationTransfer {
		if !accounts.resolvable(op.ToAccountID, op.ToAccountName) {
			fe.Field, fe.Value, fe.Expected = "to_account", op.ToAccountName, expectedAccount
			return plannedOperation{}, invalidPayload(fe)
		}
		if sameAccount(op) {
			fe.Field, fe.Value, fe.Expected = "to_account", op.ToAccountName, expectedOther
			return plannedOperation{}, invalidPayload(fe)
		}
	} else if op.CategoryName != "" || op.CategoryID != nil {
		if !categories.resolvable(op.CategoryID, op.CategoryName) {
			fe.Field, fe.Value, fe.Expected = "category", op.CategoryName, expectedCategory
			return plannedOperation{}, invalidPayload(fe)
		}
	}

	return plannedOperation{ResolvedOperation: op, date: date, amount: amount}, nil
}

func sameAccount(op draft.ResolvedOperation) bool {
	if op.AccountID != nil && op.ToAccountID != nil {
		return *op.AccountID == *op.ToAccountID
	}
	from, to := shared.NameKey(op.AccountName), shared.NameKey(op.ToAccountName)
	return from != "" && from == to
}

// parseDate accepts a calendar date or an RFC 3339 timestamp
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
