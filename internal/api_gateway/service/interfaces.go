package service

import (
	"context"
	"time"

	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/statement/apply"
	"github.com/family-finance-ledger/internal/statement/drafting"
	"github.com/google/uuid"
)

// StatementDraftService drives a statement through drafting, revision and apply
type StatementDraftService interface {
	// CreateDraft decodes the upload (or pasted text), asks the model for a draft and stores it.
	// A failed model call still stores the draft as failed and returns ErrDraftingFailed.
	CreateDraft(ctx context.Context, req CreateDraftRequest) (*draft.StatementDraft, error)

	// ReviseDraft re-drafts using the previous payload and the user's feedback.
	// A failed model call leaves the stored draft untouched.
	ReviseDraft(ctx context.Context, userID string, draftID uuid.UUID, feedback string) (*draft.StatementDraft, error)

	GetDraft(ctx context.Context, userID string, draftID uuid.UUID) (*draft.StatementDraft, error)

	// ApplyDraft commits the draft; failures are apply.ErrApply or draft.ErrDraftNotFound
	ApplyDraft(ctx context.Context, userID string, draftID uuid.UUID, confirm bool) (*apply.Result, error)
}

// CreateDraftRequest carries either an uploaded file or pasted statement text
type CreateDraftRequest struct {
	UserID        string
	BudgetID      uuid.UUID
	File          *Upload
	StatementText string
	Source        string
	StatementDate *time.Time
}

// Upload is a statement file received over HTTP
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DraftRequester is the model-facing half of drafting
type DraftRequester interface {
	RequestDraft(ctx context.Context, statementText string, snapshot any, exchange *draft.Exchange) (*drafting.Result, error)
	ReviseDraft(ctx context.Context, input drafting.RevisionInput, snapshot any, exchange *draft.Exchange) (*drafting.Result, error)
	Model() string
}

// Applier commits confirmed drafts
type Applier interface {
	Apply(ctx context.Context, userID string, draftID uuid.UUID, confirm bool) (*apply.Result, error)
}

// TaskRunner runs blocking work off the request goroutine
type TaskRunner interface {
	Run(ctx context.Context, task func() error) error
}
