package apply

import (
	"fmt"

	"github.com/family-finance-ledger/internal/domain/draft"
)

// Reason is the machine-readable code of a failed apply
type Reason string

const (
	ReasonConfirmationRequired    Reason = "confirmation_required"
	ReasonAlreadyApplied          Reason = "already_applied"
	ReasonInvalidOperationPayload Reason = Reason(draft.ReasonInvalidOperationPayload)
	ReasonUnresolvedAccount       Reason = Reason(draft.ReasonUnresolvedAccount)
	ReasonInternalError           Reason = Reason(draft.ReasonInternalError)
)

// ErrApply is returned for every apply that did not commit.
// Conflict marks requests against a draft that is already terminal.
type ErrApply struct {
	Reason   Reason
	Details  map[string]any
	Conflict bool
	Err      error
}

func (e ErrApply) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("statement apply failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("statement apply failed (%s)", e.Reason)
}

func (e ErrApply) Unwrap() error {
	return e.Err
}

// failure converts the error into what is stored on the draft
func (e ErrApply) failure() draft.Failure {
	return draft.Failure{Reason: draft.FailureReason(e.Reason), Details: e.Details}
}

// fieldError points at the offending value of one payload entry
type fieldError struct {
	Section  string
	Index    int
	Field    string
	Value    any
	Expected string
}

func (e fieldError) Error() string {
	return fmt.Sprintf("%s[%d].%s: expected %s", e.Section, e.Index, e.Field, e.Expected)
}

func (e fieldError) details() map[string]any {
	return map[string]any{
		"section":  e.Section,
		"index":    e.Index,
		"field":    e.Field,
		"value":    e.Value,
		"expected": e.Expected,
	}
}

func invalidPayload(fe fieldError) ErrApply {
	return ErrApply{Reason: ReasonInvalidOperationPayload, Details: fe.details(), Err: fe}
}

func unresolvedAccount(index int, field, name string) ErrApply {
	return ErrApply{
		Reason:  ReasonUnresolvedAccount,
		Details: map[string]any{"index": index, "field": field, "value": name},
		Err:     fmt.Errorf("account %q could not be resolved", name),
	}
}
