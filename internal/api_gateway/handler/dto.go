package handler

import (
	"time"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/domain/ledger"
	"github.com/family-finance-ledger/internal/statement/apply"
)

// CreateDraftForm is the multipart form of POST /ai/statement-drafts; the file part is read separately
type CreateDraftForm struct {
	BudgetID      string `form:"budget_id" binding:"required,uuid"`
	StatementText string `form:"statement_text"`
	Source        string `form:"source"`
	StatementDate string `form:"statement_date"`
}

// ReviseDraftForm is the form of POST /ai/statement-drafts/:id/revise
type ReviseDraftForm struct {
	Feedback string `form:"feedback" binding:"required"`
}

// DraftResponse represents a statement draft without its payload
type DraftResponse struct {
	ID             string         `json:"id"`
	BudgetID       string         `json:"budget_id"`
	Status         string         `json:"status"`
	SourceFilename *string        `json:"source_filename"`
	SourceMime     *string        `json:"source_mime"`
	SourceURI      *string        `json:"source_uri,omitempty"`
	Model          string         `json:"model"`
	Feedback       *string        `json:"feedback"`
	ApplyError     *draft.Failure `json:"apply_error,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

// DraftWithPayloadResponse is returned by create, revise and get
type DraftWithPayloadResponse struct {
	Draft   DraftResponse          `json:"draft"`
	Payload *draft.ResolvedPayload `json:"payload"`
}

// ApplyDraftResponse is returned by a committed apply
type ApplyDraftResponse struct {
	Draft               DraftResponse          `json:"draft"`
	CreatedTransactions []*ledger.Transaction  `json:"created_transactions"`
	CreatedAccounts     []*account.Account     `json:"created_accounts"`
	CreatedCategories   []*category.Category   `json:"created_categories"`
	BalanceEvents       []*ledger.BalanceEvent `json:"balance_events"`
	PreviousDebts       *ledger.DebtTotals     `json:"previous_debts,omitempty"`
	Errors              []string               `json:"errors"`
}

func mapDraftToResponse(d *draft.StatementDraft) DraftResponse {
	return DraftResponse{
		ID:             d.ID.String(),
		BudgetID:       d.BudgetID.String(),
		Status:         string(d.Status),
		SourceFilename: d.SourceFilename,
		SourceMime:     d.SourceMime,
		SourceURI:      d.SourceURI,
		Model:          d.Model,
		Feedback:       d.Feedback,
		ApplyError:     d.Failure,
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      d.UpdatedAt.Format(time.RFC3339),
	}
}

func mapApplyResultToResponse(result *apply.Result) ApplyDraftResponse {
	response := ApplyDraftResponse{
		Draft:               mapDraftToResponse(result.Draft),
		CreatedTransactions: nonNil(result.CreatedTransactions),
		CreatedAccounts:     nonNil(result.CreatedAccounts),
		CreatedCategories:   nonNil(result.CreatedCategories),
		BalanceEvents:       nonNil(result.BalanceEvents),
		PreviousDebts:       result.PreviousDebts,
		Errors:              nonNil(result.Errors),
	}
	return response
}

// nonNil keeps empty lists as [] in JSON
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
