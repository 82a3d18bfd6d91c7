package account

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyName     = errors.New("account name cannot be empty")
	ErrInvalidBudget = errors.New("account must belong to a budget")
)

// DefaultCurrency is used when a statement does not name one
const DefaultCurrency = "RUB"

// Kind is the closed set of account kinds the budget tracks
type Kind string

const (
	KindCash Kind = "cash"
	KindBank Kind = "bank"
)

// ClampKind maps any proposed kind onto {cash, bank}; cards and unknown values become bank
func ClampKind(raw string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindCash:
		return KindCash
	default:
		return KindBank
	}
}

// Account is a budget-scoped money container, matched by case-insensitive name
type Account struct {
	ID         uuid.UUID `json:"id"`
	BudgetID   uuid.UUID `json:"budget_id"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Currency   string    `json:"currency"`
	ActiveFrom time.Time `json:"active_from"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAccount creates an account active from the given date
func NewAccount(budgetID uuid.UUID, name string, kind Kind, currency string, activeFrom time.Time) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if budgetID == uuid.Nil {
		return nil, ErrInvalidBudget
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	return &Account{
		ID:         uuid.New(),
		BudgetID:   budgetID,
		Name:       name,
		Kind:       ClampKind(string(kind)),
		Currency:   currency,
		ActiveFrom: activeFrom,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
