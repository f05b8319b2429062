package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
)

func setupService(t *testing.T, store Store) (*Service, *catalog.MemoryCatalog) {
	t.Helper()
	cat := catalog.NewMemoryCatalog(catalog.Fixtures(), 0)
	return NewService(store, cat, zap.NewNop()), cat
}

func TestService_AddMergesAndSnapshotsPrice(t *testing.T) {
	svc, cat := setupService(t, NewMemoryStore(0))
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "s", "1", 2, AddOptions{})
	require.NoError(t, err)

	newPrice := decimal.NewFromInt(500)
	_, err = cat.UpdateProduct(ctx, "1", domain.ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	cart, err := svc.AddToCart(ctx, "s", "1", 3, AddOptions{})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, "89.00", cart.Items[0].Price.StringFixed(2))
	assert.Equal(t, "Premium Cushion", cart.Items[0].ProductName)
}

func TestService_AddRejectsBadInput(t *testing.T) {
	svc, _ := setupService(t, NewMemoryStore(0))
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "s", "1", 0, AddOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.AddToCart(ctx, "s", "404", 1, AddOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cart, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestService_CheckStockRejectsBeforeMutation(t *testing.T) {
	svc, _ := setupService(t, NewMemoryStore(0))
	ctx := context.Background()

	// product 6 has 5 units
	_, err := svc.AddToCart(ctx, "s", "6", 6, AddOptions{CheckStock: true})
	var stockErr *domain.StockExceededError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	cart, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	// the check compares against stock only, not what is already in the cart
	_, err = svc.AddToCart(ctx, "s", "6", 5, AddOptions{CheckStock: true})
	require.NoError(t, err)
	cart, err = svc.AddToCart(ctx, "s", "6", 5, AddOptions{CheckStock: true})
	require.NoError(t, err)
	assert.Equal(t, 10, cart.Items[0].Quantity)
}

func TestService_UpdateRemoveClear(t *testing.T) {
	svc, _ := setupService(t, NewMemoryStore(0))
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "s", "1", 2, AddOptions{})
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, "s", "5", 1, AddOptions{})
	require.NoError(t, err)

	cart, err := svc.UpdateQuantity(ctx, "s", "1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	cart, err = svc.UpdateQuantity(ctx, "s", "1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, "485", cart.Total().String())

	cart, err = svc.Remove(ctx, "s", "42")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)

	cart, err = svc.Remove(ctx, "s", "1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	require.NoError(t, svc.Clear(ctx, "s"))
	cart, err = svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestService_SessionsAreIsolated(t *testing.T) {
	svc, _ := setupService(t, NewMemoryStore(0))
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "a", "1", 1, AddOptions{})
	require.NoError(t, err)

	other, err := svc.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())
}

func TestService_ConcurrentAddsAreNotLost(t *testing.T) {
	stores := map[string]Store{"memory": NewMemoryStore(0)}
	_, client := setupTestRedis(t)
	stores["redis"] = NewRedisStore(client, time.Hour)

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			svc, _ := setupService(t, store)
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.AddToCart(ctx, "shared", "9", 1, AddOptions{})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			cart, err := svc.Get(ctx, "shared")
			require.NoError(t, err)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, 50, cart.Items[0].Quantity)
			assert.Equal(t, 0, svc.locks.size())
		})
	}
}

func TestService_CheckoutClearsOnlyOnSuccess(t *testing.T) {
	svc, _ := setupService(t, NewMemoryStore(0))
	ctx := context.Background()

	err := svc.Checkout(ctx, "s", func(context.Context, domain.Cart) error {
		t.Fatal("fn must not run for an empty cart")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	_, err = svc.AddToCart(ctx, "s", "1", 2, AddOptions{})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = svc.Checkout(ctx, "s", func(_ context.Context, cart domain.Cart) error {
		assert.Len(t, cart.Items, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	cart, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	require.NoError(t, svc.Checkout(ctx, "s", func(context.Context, domain.Cart) error { return nil }))
	cart, err = svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestService_CheckoutHoldsSessionLock(t *testing.T) {
	svc, _ := setupService(t, NewMemoryStore(0))
	ctx := context.Background()
	_, err := svc.AddToCart(ctx, "s", "1", 1, AddOptions{})
	require.NoError(t, err)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- svc.Checkout(ctx, "s", func(context.Context, domain.Cart) error {
			close(entered)
			<-proceed
			return nil
		})
	}()
	<-entered

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = svc.AddToCart(waitCtx, "s", "1", 1, AddOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(proceed)
	require.NoError(t, <-done)

	cart, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}
