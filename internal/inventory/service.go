package inventory

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
)

// Service is the admin stock surface: manual additions and removals with a
// local stock check before removals.
type Service struct {
	inventory Inventory
	catalog   catalog.Catalog
	log       *zap.Logger
}

func NewService(inv Inventory, cat catalog.Catalog, log *zap.Logger) *Service {
	return &Service{inventory: inv, catalog: cat, log: log}
}

func (s *Service) Add(ctx context.Context, productID string, qty int, notes string) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return err
	}
	err := s.inventory.AddStock(ctx, domain.StockRequest{
		ProductID:      productID,
		Quantity:       qty,
		IdempotencyKey: uuid.NewString(),
		Actor:          ActorAdmin,
		Notes:          notes,
	})
	if err != nil {
		return err
	}
	logger.WithContext(ctx, s.log).Info("stock added",
		zap.String("product_id", productID),
		zap.Int("quantity", qty))
	return nil
}

// Remove refuses to take out more than the product currently holds.
func (s *Service) Remove(ctx context.Context, productID string, qty int, notes string) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if qty > product.Stock {
		return &domain.StockExceededError{ProductID: productID, Requested: qty, Available: product.Stock}
	}
	err = s.inventory.RemoveStock(ctx, domain.StockRequest{
		ProductID:      productID,
		Quantity:       qty,
		IdempotencyKey: uuid.NewString(),
		Actor:          ActorAdmin,
		Notes:          notes,
	})
	if err != nil {
		return err
	}
	logger.WithContext(ctx, s.log).Info("stock removed",
		zap.String("product_id", productID),
		zap.Int("quantity", qty))
	return nil
}

func (s *Service) History(ctx context.Context, productID string) ([]domain.StockHistoryEntry, error) {
	return s.inventory.History(ctx, productID)
}
