package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const draftColumns = `id, user_id, budget_id, status, source_filename, source_mime, source_uri,
			source_text, model, draft_payload, raw_response, feedback, apply_error, created_at, updated_at`

// DraftRepository implements draft.Repository for PostgreSQL.
// The payload and failure are stored as JSONB.
type DraftRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewDraftRepository(logger *slog.Logger, db *persistence.PostgresDB) draft.Repository {
	return &DraftRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *DraftRepository) WithTx(tx pgx.Tx) draft.Repository {
	return &DraftRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *DraftRepository) Create(ctx context.Context, d *draft.StatementDraft) error {
	payload, failure, err := encodeDraftJSON(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO statement_drafts (` + draftColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.querier.Exec(ctx, query,
		d.ID,
		d.UserID,
		d.BudgetID,
		d.Status,
		d.SourceFilename,
		d.SourceMime,
		d.SourceURI,
		d.SourceText,
		d.Model,
		payload,
		d.RawResponse,
		d.Feedback,
		failure,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create statement draft", "id", d.ID.String(), "error", err)
		return fmt.Errorf("failed to create statement draft: %w", err)
	}

	return nil
}

func (r *DraftRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*draft.StatementDraft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM statement_drafts
		WHERE id = $1 AND user_id = $2
	`
	return r.get(ctx, query, userID, id)
}

func (r *DraftRepository) GetByIDForUpdate(ctx context.Context, userID string, id uuid.UUID) (*draft.StatementDraft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM statement_drafts
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	return r.get(ctx, query, userID, id)
}

func (r *DraftRepository) get(ctx context.Context, query, userID string, id uuid.UUID) (*draft.StatementDraft, error) {
	var d draft.StatementDraft
	var payload, failure []byte

	err := r.querier.QueryRow(ctx, query, id, userID).Scan(
		&d.ID,
		&d.UserID,
		&d.BudgetID,
		&d.Status,
		&d.SourceFilename,
		&d.SourceMime,
		&d.SourceURI,
		&d.SourceText,
		&d.Model,
		&payload,
		&d.RawResponse,
		&d.Feedback,
		&failure,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, draft.ErrDraftNotFound{ID: id}
		}
		r.logger.Error("Failed to get statement draft", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get statement draft: %w", err)
	}

	if len(payload) > 0 {
		d.Payload = &draft.ResolvedPayload{}
		if err := json.Unmarshal(payload, d.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode draft payload: %w", err)
		}
	}
	if len(failure) > 0 {
		d.Failure = &draft.Failure{}
		if err := json.Unmarshal(failure, d.Failure); err != nil {
			return nil, fmt.Errorf("failed to decode draft failure: %w", err)
		}
	}

	return &d, nil
}

// Update writes the draft back only while the stored row is still open. A row that reached
// applied or failed in the meantime is left alone and ErrInvalidTransition is returned.
func (r *DraftRepository) Update(ctx context.Context, d *draft.StatementDraft) error {
	payload, failure, err := encodeDraftJSON(d)
	if err != nil {
		return err
	}

	query := `
		UPDATE statement_drafts
		SET status = $1, draft_payload = $2, raw_response = $3, feedback = $4, apply_error = $5, updated_at = $6
		WHERE id = $7 AND user_id = $8 AND status IN ('draft', 'revised')
	`

	result, err := r.querier.Exec(ctx, query,
		d.Status,
		payload,
		d.RawResponse,
		d.Feedback,
		failure,
		d.UpdatedAt,
		d.ID,
		d.UserID,
	)
	if err != nil {
		r.logger.Error("Failed to update statement draft",
			"id", d.ID.String(),
			"status", string(d.Status),
			"error", err,
		)
		return fmt.Errorf("failed to update statement draft: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.staleUpdate(ctx, d)
	}

	return nil
}

// staleUpdate explains why Update matched no row
func (r *DraftRepository) staleUpdate(ctx context.Context, d *draft.StatementDraft) error {
	var current draft.Status
	err := r.querier.QueryRow(ctx,
		`SELECT status FROM statement_drafts WHERE id = $1 AND user_id = $2`,
		d.ID, d.UserID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return draft.ErrDraftNotFound{ID: d.ID}
		}
		return fmt.Errorf("failed to read statement draft status: %w", err)
	}

	r.logger.Warn("Statement draft changed before update",
		"id", d.ID.String(),
		"stored_status", string(current),
		"status", string(d.Status),
	)
	return draft.ErrInvalidTransition{From: current, To: d.Status}
}

// encodeDraftJSON marshals the JSONB columns; nil values stay SQL NULL
func encodeDraftJSON(d *draft.StatementDraft) (payload, failure []byte, err error) {
	if d.Payload != nil {
		if payload, err = json.Marshal(d.Payload); err != nil {
			return nil, nil, fmt.Errorf("failed to encode draft payload: %w", err)
		}
	}
	if d.Failure != nil {
		if failure, err = json.Marshal(d.Failure); err != nil {
			return nil, nil, fmt.Errorf("failed to encode draft failure: %w", err)
		}
	}
	return payload, failure, nil
}
