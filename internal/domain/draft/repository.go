package draft

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists statement drafts. Reads are scoped to the owning user.
type Repository interface {
	Create(ctx context.Context, draft *StatementDraft) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*StatementDraft, error)

	// GetByIDForUpdate locks the draft row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, userID string, id uuid.UUID) (*StatementDraft, error)

	// Update writes status, payload, raw response, feedback and failure
	Update(ctx context.Context, draft *StatementDraft) error
	WithTx(tx pgx.Tx) Repository
}

// ErrDraftNotFound is returned for unknown drafts and drafts owned by another user
type ErrDraftNotFound struct {
	ID uuid.UUID
}

func (e ErrDraftNotFound) Error() string {
	return "statement draft not found: " + e.ID.String()
}

func (e ErrDraftNotFound) Is(target error) bool {
	t, ok := target.(ErrDraftNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}
