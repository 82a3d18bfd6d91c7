package draft

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/shopspring/decimal"
)

// OperationType is the canonical operation vocabulary; the model's "commission" becomes fee
type OperationType string

const (
	OperationIncome   OperationType = "income"
	OperationExpense  OperationType = "expense"
	OperationTransfer OperationType = "transfer"
	OperationFee      OperationType = "fee"
)

func (t OperationType) Valid() bool {
	switch t {
	case OperationIncome, OperationExpense, OperationTransfer, OperationFee:
		return true
	}
	return false
}

// NeedsCategory reports whether the materialized transaction must carry a category
func (t OperationType) NeedsCategory() bool {
	return t == OperationExpense || t == OperationFee
}

// CategoryType tells whether a missing category collects income or spending
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

var ErrNotANumber = errors.New("value is not a JSON number")

// Number keeps the raw JSON token of a numeric field so that strings and
// booleans sent by the model survive until strict validation rejects them.
type Number struct {
	raw json.RawMessage
}

func NewNumber(d decimal.Decimal) Number {
	return Number{raw: json.RawMessage(d.String())}
}

// IsEmpty is true for absent, null and empty-string values
func (n Number) IsEmpty() bool {
	s := strings.TrimSpace(string(n.raw))
	return s == "" || s == "null" || s == `""`
}

// Decimal parses the value, rejecting anything that is not a bare JSON number
func (n Number) Decimal() (decimal.Decimal, error) {
	s := strings.TrimSpace(string(n.raw))
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}
	switch s[0] {
	case '"', '{', '[', 't', 'f', 'n':
		return decimal.Zero, ErrNotANumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotANumber
	}
	return d, nil
}

// Value returns the decoded JSON value for error details
func (n Number) Value() any {
	var v any
	if err := json.Unmarshal(n.raw, &v); err != nil {
		return string(n.raw)
	}
	return v
}

func (n Number) MarshalJSON() ([]byte, error) {
	if len(n.raw) == 0 {
		return []byte("null"), nil
	}
	return n.raw, nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	n.raw = append(n.raw[:0], b...)
	return nil
}

// Operation is one proposed money movement as authored by the model
type Operation struct {
	Date         string          `json:"date"`
	Amount       Number          `json:"amount"`
	Currency     string          `json:"currency,omitempty"`
	Type         OperationType   `json:"type"`
	Account      string          `json:"account"`
	ToAccount    string          `json:"to_account,omitempty"`
	Counterparty string          `json:"counterparty,omitempty"`
	Category     string          `json:"category,omitempty"`
	Description  string          `json:"description,omitempty"`
	BalanceAfter *Number         `json:"balance_after,omitempty"`
	Debt         json.RawMessage `json:"debt,omitempty"`
}

type AccountProposal struct {
	Name     string `json:"name"`
	Kind     string `json:"type,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type CategoryProposal struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// BalanceAdjustment is a manual correction recorded as a reconcile_adjust event
type BalanceAdjustment struct {
	AccountName string `json:"account_name"`
	Date        string `json:"date"`
	Delta       Number `json:"delta"`
}

// DebtsUpdate overwrites the debt totals as of Date
type DebtsUpdate struct {
	Date             string `json:"date"`
	CreditCardsTotal Number `json:"credit_cards_total"`
	PeopleDebtsTotal Number `json:"people_debts_total"`
}

// ValidatedPayload is a model response that passed contract validation
type ValidatedPayload struct {
	Operations         []Operation         `json:"operations"`
	Summary            json.RawMessage     `json:"summary"`
	AccountsToCreate   []AccountProposal   `json:"accounts_to_create"`
	CategoriesToCreate []CategoryProposal  `json:"categories_to_create"`
	Counterparties     []string            `json:"counterparties"`
	Warnings           []string            `json:"warnings"`
	BalanceAdjustments []BalanceAdjustment `json:"balance_adjustments,omitempty"`
	Debts              *DebtsUpdate        `json:"debts,omitempty"`
}

type MissingAccount struct {
	Name     string       `json:"name"`
	Kind     account.Kind `json:"kind"`
	Currency string       `json:"currency,omitempty"`
}

type MissingCategory struct {
	Name   string       `json:"name"`
	Type   CategoryType `json:"type"`
	Parent string       `json:"parent,omitempty"`
}

// ResolvedPayload is the validated payload annotated with entity resolution
type ResolvedPayload struct {
	ValidatedPayload
	MissingAccounts        []MissingAccount    `json:"missing_accounts"`
	MissingCategories      []MissingCategory   `json:"missing_categories"`
	NormalizedTransactions []ResolvedOperation `json:"normalized_transactions"`
	Context                *Context            `json:"context,omitempty"`
}
