package draft

import (
	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Context is the budget snapshot sent to the model alongside the statement
type Context struct {
	AsOf       string            `json:"as_of"`
	Accounts   []ContextAccount  `json:"accounts"`
	Categories []ContextCategory `json:"categories"`
	Debts      ContextDebts      `json:"debts"`
	Source     string            `json:"source,omitempty"`
}

type ContextAccount struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Kind     account.Kind    `json:"kind"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type ContextCategory struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

type ContextDebts struct {
	CreditCardsTotal decimal.Decimal `json:"credit_cards_total"`
	PeopleDebtsTotal decimal.Decimal `json:"people_debts_total"`
}

// Entities rebuilds the account and category lists a snapshot was taken from
func (c *Context) Entities(budgetID uuid.UUID) ([]*account.Account, []*category.Category) {
	accounts := make([]*account.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		accounts = append(accounts, &account.Account{
			ID:       a.ID,
			BudgetID: budgetID,
			Name:     a.Name,
			Kind:     a.Kind,
			Currency: a.Currency,
		})
	}

	categories := make([]*category.Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		categories = append(categories, &category.Category{
			ID:       cat.ID,
			BudgetID: budgetID,
			Name:     cat.Name,
			ParentID: cat.ParentID,
		})
	}
	return accounts, categories
}
