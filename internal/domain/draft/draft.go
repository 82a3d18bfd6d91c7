package draft

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a statement draft
type Status string

const (
	StatusDraft   Status = "draft"
	StatusRevised Status = "revised"
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusRevised, StatusApplied, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApplied, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces draft -> revised* -> applied | failed
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft, StatusRevised:
		switch next {
		case StatusRevised, StatusApplied, StatusFailed:
			return true
		}
	}
	return false
}

// FailureReason is the machine-readable cause stored on a failed draft
type FailureReason string

const (
	ReasonContractViolation       FailureReason = "contract_violation"
	ReasonLLMError                FailureReason = "llm_error"
	ReasonInvalidOperationPayload FailureReason = "invalid_operation_payload"
	ReasonUnresolvedAccount       FailureReason = "unresolved_account"
	ReasonInternalError           FailureReason = "internal_error"
)

func (r FailureReason) Valid() bool {
	switch r {
	case ReasonContractViolation,
		ReasonLLMError,
		ReasonInvalidOperationPayload,
		ReasonUnresolvedAccount,
		ReasonInternalError:
		return true
	}
	return false
}

// Failure records why a draft ended up failed
type Failure struct {
	Reason  FailureReason  `json:"reason"`
	Details map[string]any `json:"details,omitempty"`
}

// StatementDraft is a proposed set of operations derived from one bank statement
type StatementDraft struct {
	ID             uuid.UUID        `json:"id"`
	UserID         string           `json:"user_id"`
	BudgetID       uuid.UUID        `json:"budget_id"`
	Status         Status           `json:"status"`
	SourceFilename *string          `json:"source_filename,omitempty"`
	SourceMime     *string          `json:"source_mime,omitempty"`
	SourceURI      *string          `json:"source_uri,omitempty"`
	SourceText     string           `json:"source_text"`
	Model          string           `json:"model"`
	Payload        *ResolvedPayload `json:"draft_payload,omitempty"`
	RawResponse    string           `json:"-"`
	Feedback       *string          `json:"feedback,omitempty"`
	Failure        *Failure         `json:"apply_error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Source describes where the statement text came from
type Source struct {
	Filename string
	Mime     string
	URI      string
}

// NewStatementDraft builds a draft in its initial state
func NewStatementDraft(userID string, budgetID uuid.UUID, source Source, sourceText, model string) *StatementDraft {
	now := time.Now().UTC()
	return &StatementDraft{
		ID:             uuid.New(),
		UserID:         userID,
		BudgetID:       budgetID,
		Status:         StatusDraft,
		SourceFilename: optional(source.Filename),
		SourceMime:     optional(source.Mime),
		SourceURI:      optional(source.URI),
		SourceText:     sourceText,
		Model:          model,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (d *StatementDraft) transition(next Status) error {
	if !d.Status.CanTransitionTo(next) {
		return ErrInvalidTransition{From: d.Status, To: next}
	}
	d.Status = next
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// Revise replaces the payload with the one produced from user feedback
func (d *StatementDraft) Revise(payload *ResolvedPayload, rawResponse, feedback string) error {
	if err := d.transition(StatusRevised); err != nil {
		return err
	}
	d.Payload = payload
	d.RawResponse = rawResponse
	d.Feedback = optional(feedback)
	return nil
}

func (d *StatementDraft) MarkApplied() error {
	if err := d.transition(StatusApplied); err != nil {
		return err
	}
	d.Failure = nil
	return nil
}

func (d *StatementDraft) MarkFailed(failure Failure) error {
	if err := d.transition(StatusFailed); err != nil {
		return err
	}
	d.Failure = &failure
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ErrInvalidTransition is returned when a status change would break the lifecycle
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("statement draft cannot move from %s to %s", e.From, e.To)
}
