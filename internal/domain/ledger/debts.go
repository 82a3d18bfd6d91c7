package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtTotals are the credit-card and people debt totals recorded for a budget on a date
type DebtTotals struct {
	Date        time.Time       `json:"date"`
	CreditCards decimal.Decimal `json:"credit_cards_total"`
	PeopleDebts decimal.Decimal `json:"people_debts_total"`
}
