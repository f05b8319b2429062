package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
)

func TestService_RemoveRejectsMoreThanStockLocally(t *testing.T) {
	store, cat := setupStore(t)
	svc := NewService(store, cat, zap.NewNop())
	ctx := context.Background()

	err := svc.Remove(ctx, "3", 9, "")
	var se *domain.StockExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 8, se.Available)

	history, _ := store.History(ctx, "3")
	assert.Empty(t, history)
}

func TestService_AddAndRemove(t *testing.T) {
	store, cat := setupStore(t)
	svc := NewService(store, cat, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "3", 2, "Restock"))
	require.NoError(t, svc.Remove(ctx, "3", 10, "Damaged"))
	assert.Equal(t, 0, stockOf(t, cat, "3"))

	history, err := svc.History(ctx, "3")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ActorAdmin, history[0].PerformedBy)
	assert.Equal(t, "Damaged", history[0].Notes)
}

func TestService_UnknownProduct(t *testing.T) {
	store, cat := setupStore(t)
	svc := NewService(store, cat, zap.NewNop())

	assert.ErrorIs(t, svc.Add(context.Background(), "nope", 1, ""), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(context.Background(), "1", 0, ""), domain.ErrInvalidQuantity)
}
