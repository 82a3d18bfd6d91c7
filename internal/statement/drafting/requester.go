// Package drafting asks the model for a structured draft of a statement and enforces the response contract.
package drafting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/platform/llm"
)

// Requester drafts statements through an llm.Client. It never retries.
type Requester struct {
	client llm.Client
	audit  draft.ExchangeRepository
	logger *slog.Logger
}

// Result is a contract-conforming draft and the raw text it was decoded from
type Result struct {
	Payload     *draft.ValidatedPayload
	RawResponse string
	Model       string
}

// NewRequester creates a requester; audit may be nil to disable the exchange log
func NewRequester(client llm.Client, audit draft.ExchangeRepository, logger *slog.Logger) *Requester {
	return &Requester{
		client: client,
		audit:  audit,
		logger: logger,
	}
}

func (r *Requester) Model() string {
	return r.client.Model()
}

// RequestDraft sends the statement with the budget snapshot. exchange, when not nil,
// identifies the draft in the audit log.
func (r *Requester) RequestDraft(ctx context.Context, statementText string, snapshot any, exchange *draft.Exchange) (*Result, error) {
	userPrompt, err := buildUserPrompt(statementText, snapshot)
	if err != nil {
		return nil, err
	}
	return r.request(ctx, userPrompt, exchange)
}

// ReviseDraft asks for a corrected draft given the previous one and user feedback
func (r *Requester) ReviseDraft(ctx context.Context, input RevisionInput, snapshot any, exchange *draft.Exchange) (*Result, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode revision input: %w", err)
	}
	userPrompt, err := buildUserPrompt(string(inputJSON), RevisionContext{Context: snapshot})
	if err != nil {
		return nil, err
	}
	return r.request(ctx, userPrompt, exchange)
}

func (r *Requester) request(ctx context.Context, userPrompt string, exchange *draft.Exchange) (*Result, error) {
	start := time.Now()
	raw, err := r.client.Complete(ctx, systemPrompt, userPrompt)

	var payload *draft.ValidatedPayload
	if err == nil {
		payload, err = ParseResponse(raw)
	}
	r.record(ctx, exchange, len(systemPrompt)+len(userPrompt), raw, time.Since(start), err)

	if err != nil {
		r.logger.Warn("Statement draft request failed",
			"provider", r.client.Provider(),
			"model", r.client.Model(),
			"error", err)
		return nil, err
	}

	r.logger.Info("Statement draft received",
		"model", r.client.Model(),
		"operations", len(payload.Operations),
		"warnings", len(payload.Warnings))
	return &Result{Payload: payload, RawResponse: raw, Model: r.client.Model()}, nil
}

func (r *Requester) record(ctx context.Context, exchange *draft.Exchange, promptChars int, raw string, latency time.Duration, err error) {
	if r.audit == nil || exchange == nil {
		return
	}

	entry := *exchange
	entry.Provider = r.client.Provider()
	entry.Model = r.client.Model()
	entry.PromptChars = promptChars
	entry.RawResponse = raw
	entry.LatencyMS = latency.Milliseconds()
	entry.CreatedAt = time.Now().UTC()

	if err != nil {
		entry.Error = err.Error()
		var llmErr llm.ErrLLM
		if errors.As(err, &llmErr) && entry.RawResponse == "" {
			entry.RawResponse = llmErr.RawResponse
		}
		var contractErr ErrContractViolation
		if errors.As(err, &contractErr) {
			entry.Violations = contractErr.Violations
		}
	}

	if recordErr := r.audit.Record(ctx, &entry); recordErr != nil {
		r.logger.Error("Failed to record LLM exchange",
			"draft_id", entry.DraftID.String(),
			"error", recordErr)
	}
}
