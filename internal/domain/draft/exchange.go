package draft

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExchangeKind tells which pipeline step talked to the model
type ExchangeKind string

const (
	ExchangeCreate ExchangeKind = "create"
	ExchangeRevise ExchangeKind = "revise"
)

// Exchange is one audited request/response round trip with the LLM
type Exchange struct {
	DraftID     uuid.UUID    `bson:"draft_id" json:"draft_id"`
	UserID      string       `bson:"user_id" json:"user_id"`
	BudgetID    uuid.UUID    `bson:"budget_id" json:"budget_id"`
	Kind        ExchangeKind `bson:"kind" json:"kind"`
	Provider    string       `bson:"provider" json:"provider"`
	Model       string       `bson:"model" json:"model"`
	PromptChars int          `bson:"prompt_chars" json:"prompt_chars"`
	RawResponse string       `bson:"raw_response,omitempty" json:"raw_response,omitempty"`
	Error       string       `bson:"error,omitempty" json:"error,omitempty"`
	Violations  []string     `bson:"violations,omitempty" json:"violations,omitempty"`
	LatencyMS   int64        `bson:"latency_ms" json:"latency_ms"`
	CreatedAt   time.Time    `bson:"created_at" json:"created_at"`
}

// ExchangeRepository stores the LLM audit log
type ExchangeRepository interface {
	Record(ctx context.Context, exchange *Exchange) error
	ListByDraft(ctx context.Context, draftID uuid.UUID) ([]*Exchange, error)
}
