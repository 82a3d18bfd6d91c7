package draft

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		from     Status
		to       Status
		expected bool
	}{
		{StatusDraft, StatusRevised, true},
		{StatusDraft, StatusApplied, true},
		{StatusDraft, StatusFailed, true},
		{StatusRevised, StatusRevised, true},
		{StatusRevised, StatusApplied, true},
		{StatusRevised, StatusDraft, false},
		{StatusDraft, StatusDraft, false},
		{StatusApplied, StatusFailed, false},
		{StatusApplied, StatusRevised, false},
		{StatusFailed, StatusApplied, false},
		{StatusFailed, StatusRevised, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestStatementDraft_Lifecycle(t *testing.T) {
	t.Run("NewDraftKeepsOnlyGivenSource", func(t *testing.T) {
		d := NewStatementDraft("user-1", uuid.New(), Source{Mime: "text/plain"}, "statement", "gpt-4o-mini")

		assert.Equal(t, StatusDraft, d.Status)
		assert.Nil(t, d.SourceFilename)
		require.NotNil(t, d.SourceMime)
		assert.Equal(t, "text/plain", *d.SourceMime)
		assert.Nil(t, d.SourceURI)
	})

	t.Run("ReviseThenApply", func(t *testing.T) {
		d := NewStatementDraft("user-1", uuid.New(), Source{}, "statement", "model")
		payload := &ResolvedPayload{}

		require.NoError(t, d.Revise(payload, `{"operations":[]}`, "fix dates"))
		require.NoError(t, d.Revise(payload, `{"operations":[]}`, "fix again"))
		assert.Equal(t, StatusRevised, d.Status)
		assert.Equal(t, "fix again", *d.Feedback)

		require.NoError(t, d.MarkApplied())
		assert.True(t, d.Status.IsTerminal())

		err := d.MarkFailed(Failure{Reason: ReasonInternalError})
		var transitionErr ErrInvalidTransition
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, StatusApplied, transitionErr.From)
		assert.Equal(t, StatusApplied, d.Status)
	})

	t.Run("FailedIsTerminal", func(t *testing.T) {
		d := NewStatementDraft("user-1", uuid.New(), Source{}, "statement", "model")
		require.NoError(t, d.MarkFailed(Failure{Reason: ReasonContractViolation}))

		assert.Equal(t, ReasonContractViolation, d.Failure.Reason)
		assert.Error(t, d.Revise(&ResolvedPayload{}, "", "feedback"))
		assert.Error(t, d.MarkApplied())
	})
}

func TestNumber(t *testing.T) {
	t.Run("AcceptsNumbers", func(t *testing.T) {
		for _, raw := range []string{`500`, `-100.25`, `1e3`} {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(raw), &n))
			_, err := n.Decimal()
			assert.NoError(t, err, raw)
		}
	})

	t.Run("RejectsNonNumbers", func(t *testing.T) {
		for _, raw := range []string{`true`, `false`, `"500"`, `null`, `{}`, `[1]`} {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(raw), &n))
			_, err := n.Decimal()
			assert.ErrorIs(t, err, ErrNotANumber, raw)
		}
	})

	t.Run("PreservesRawToken", func(t *testing.T) {
		var op Operation
		require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-03-01","amount":true,"type":"expense","account":"Cash"}`), &op))

		assert.Equal(t, true, op.Amount.Value())
		out, err := json.Marshal(op)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"amount":true`)
	})

	t.Run("NewNumber", func(t *testing.T) {
		n := NewNumber(decimal.RequireFromString("42.50"))
		d, err := n.Decimal()
		require.NoError(t, err)
		assert.True(t, d.Equal(decimal.RequireFromString("42.5")))
	})

	t.Run("IsEmpty", func(t *testing.T) {
		assert.True(t, Number{}.IsEmpty())
		assert.True(t, Number{raw: json.RawMessage(`""`)}.IsEmpty())
		assert.False(t, Number{raw: json.RawMessage(`0`)}.IsEmpty())
	})
}

func TestResolvedPayload_JSONFlattensValidatedFields(t *testing.T) {
	payload := ResolvedPayload{
		ValidatedPayload: ValidatedPayload{
			Summary:  json.RawMessage(`{}`),
			Warnings: []string{"row 3 skipped"},
		},
		MissingAccounts: []MissingAccount{{Name: "Tinkoff", Kind: "bank"}},
	}

	out, err := json.Marshal(payload)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Contains(t, generic, "warnings")
	assert.Contains(t, generic, "missing_accounts")
	assert.Contains(t, generic, "normalized_transactions")
	assert.NotContains(t, generic, "ValidatedPayload")
}

func TestErrDraftNotFound_Is(t *testing.T) {
	id := uuid.New()
	err := error(ErrDraftNotFound{ID: id})

	assert.ErrorIs(t, err, ErrDraftNotFound{})
	assert.ErrorIs(t, err, ErrDraftNotFound{ID: id})
	assert.NotErrorIs(t, err, ErrDraftNotFound{ID: uuid.New()})
}

func TestContext_Entities(t *testing.T) {
	budgetID := uuid.New()
	ctx := &Context{
		Accounts:   []ContextAccount{{ID: uuid.New(), Name: "Tinkoff", Kind: "bank", Currency: "RUB"}},
		Categories: []ContextCategory{{ID: uuid.New(), Name: "Groceries"}},
	}

	accounts, categories := ctx.Entities(budgetID)
	require.Len(t, accounts, 1)
	require.Len(t, categories, 1)
	assert.Equal(t, budgetID, accounts[0].BudgetID)
	assert.Equal(t, "Groceries", categories[0].Name)
}
