// Package mongo stores the LLM exchange audit log
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// ExchangeCollectionName is the name of the LLM exchange collection in MongoDB
	ExchangeCollectionName = "llm_exchanges"
)

// ExchangeRepository implements draft.ExchangeRepository for MongoDB
type ExchangeRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewExchangeRepository(logger *slog.Logger, db *mongo.Database) *ExchangeRepository {
	return &ExchangeRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the lookup index used by ListByDraft
func (r *ExchangeRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(ExchangeCollectionName)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "draft_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		r.logger.Error("Failed to create exchange index", "error", err)
		return fmt.Errorf("failed to create exchange index: %w", err)
	}
	return nil
}

// Record appends one exchange; the log is never updated in place
func (r *ExchangeRepository) Record(ctx context.Context, exchange *draft.Exchange) error {
	collection := r.db.Collection(ExchangeCollectionName)

	if _, err := collection.InsertOne(ctx, exchange); err != nil {
		r.logger.Error("Failed to record LLM exchange",
			"draft_id", exchange.DraftID.String(),
			"kind", string(exchange.Kind),
			"error", err)
		return fmt.Errorf("failed to record LLM exchange: %w", err)
	}
	return nil
}

// ListByDraft returns a draft's exchanges oldest first
func (r *ExchangeRepository) ListByDraft(ctx context.Context, draftID uuid.UUID) ([]*draft.Exchange, error) {
	collection := r.db.Collection(ExchangeCollectionName)

	filter := bson.M{"draft_id": draftID}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list LLM exchanges", "draft_id", draftID.String(), "error", err)
		return nil, fmt.Errorf("failed to list LLM exchanges: %w", err)
	}
	defer cursor.Close(ctx)

	exchanges := []*draft.Exchange{}
	if err := cursor.All(ctx, &exchanges); err != nil {
		r.logger.Error("Failed to decode LLM exchanges", "draft_id", draftID.String(), "error", err)
		return nil, fmt.Errorf("failed to decode LLM exchanges: %w", err)
	}

	return exchanges, nil
}
