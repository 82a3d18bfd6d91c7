package category

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultName is the catch-all category assigned to expenses that arrive without one
const DefaultName = "Прочее"

var ErrEmptyName = errors.New("category name cannot be empty")

// Category is a budget-scoped classification for transactions
type Category struct {
	ID        uuid.UUID  `json:"id"`
	BudgetID  uuid.UUID  `json:"budget_id"`
	Name      string     `json:"name"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewCategory(budgetID uuid.UUID, name string, parentID *uuid.UUID) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	return &Category{
		ID:        uuid.New(),
		BudgetID:  budgetID,
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}, nil
}
