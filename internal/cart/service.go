package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
)

// Service owns every session cart. Each operation runs load, mutate and save
// while holding that session's lock, so concurrent requests for one session
// never lose updates.
type Service struct {
	store   Store
	catalog catalog.Catalog
	locks   *sessionLocks
	log     *zap.Logger
	now     func() time.Time
}

func NewService(store Store, cat catalog.Catalog, log *zap.Logger) *Service {
	return &Service{
		store:   store,
		catalog: cat,
		locks:   newSessionLocks(),
		log:     log,
		now:     time.Now,
	}
}

// AddOptions tunes AddToCart. CheckStock is set by the product detail page:
// a quantity above the product's current stock is rejected before the cart
// is touched.
type AddOptions struct {
	CheckStock bool
}

// Get returns the session's cart; a session without one gets an empty cart.
func (s *Service) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	release, err := s.locks.acquire(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer release()

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart.Snapshot(), nil
}

// AddToCart fetches the product and adds qty of it to the cart. The line item
// keeps the price seen now even if the catalog changes later.
func (s *Service) AddToCart(ctx context.Context, sessionID, productID string, qty int, opts AddOptions) (domain.Cart, error) {
	if qty < 1 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if opts.CheckStock && qty > product.Stock {
		return domain.Cart{}, &domain.StockExceededError{
			ProductID: product.ID,
			Requested: qty,
			Available: product.Stock,
		}
	}

	return s.mutate(ctx, sessionID, func(cart *domain.Cart) (bool, error) {
		if err := cart.Add(*product, qty); err != nil {
			return false, err
		}
		return true, nil
	})
}

// UpdateQuantity sets a line's quantity. Quantities below 1 and unknown
// products leave the cart unchanged.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, productID string, qty int) (domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) (bool, error) {
		return cart.UpdateQuantity(productID, qty), nil
	})
}

// Remove drops a line. Removing an absent product is a no-op.
func (s *Service) Remove(ctx context.Context, sessionID, productID string) (domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) (bool, error) {
		return cart.Remove(productID), nil
	})
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	release, err := s.locks.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	return s.store.Delete(ctx, sessionID)
}

// Checkout locks the session cart for the whole of fn, which receives a
// snapshot of the items. The cart is cleared only when fn succeeds; an empty
// cart fails with ErrEmptyCart without calling fn.
func (s *Service) Checkout(ctx context.Context, sessionID string, fn func(ctx context.Context, cart domain.Cart) error) error {
	release, err := s.locks.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if cart.IsEmpty() {
		return domain.ErrEmptyCart
	}

	if err := fn(ctx, cart.Snapshot()); err != nil {
		return err
	}

	if err := s.store.Delete(context.WithoutCancel(ctx), sessionID); err != nil {
		logger.WithContext(ctx, s.log).Error("clear cart after checkout failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(cart *domain.Cart) (bool, error)) (domain.Cart, error) {
	release, err := s.locks.acquire(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer release()

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}

	changed, err := fn(cart)
	if err != nil {
		return domain.Cart{}, err
	}
	if changed {
		cart.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, sessionID, cart); err != nil {
			return domain.Cart{}, fmt.Errorf("save cart: %w", err)
		}
	}
	return cart.Snapshot(), nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, ErrCartNotFound) {
		return &domain.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart, nil
}
