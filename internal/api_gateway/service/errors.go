package service

import (
	"errors"

	"github.com/family-finance-ledger/internal/domain/draft"
)

// ErrMissingStatement is returned when neither a file nor statement text was sent
var ErrMissingStatement = errors.New("statement file or text is required")

// ErrUnreadableStatement wraps a decoder failure on a supported format
type ErrUnreadableStatement struct {
	Err error
}

func (e ErrUnreadableStatement) Error() string {
	return "statement could not be read: " + e.Err.Error()
}

func (e ErrUnreadableStatement) Unwrap() error {
	return e.Err
}

// ErrDraftingFailed reports a model failure. Draft is the stored failed draft on create, nil on revise.
type ErrDraftingFailed struct {
	Draft *draft.StatementDraft
	Err   error
}

func (e ErrDraftingFailed) Error() string {
	return "statement drafting failed: " + e.Err.Error()
}

func (e ErrDraftingFailed) Unwrap() error {
	return e.Err
}
