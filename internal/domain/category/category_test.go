package category

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCategory(t *testing.T) {
	budgetID := uuid.New()
	parentID := uuid.New()

	cat, err := NewCategory(budgetID, " Супермаркеты ", &parentID)
	require.NoError(t, err)
	assert.Equal(t, "Супермаркеты", cat.Name)
	assert.Equal(t, &parentID, cat.ParentID)
	assert.NotEqual(t, uuid.Nil, cat.ID)

	_, err = NewCategory(budgetID, "", nil)
	assert.ErrorIs(t, err, ErrEmptyName)
}
