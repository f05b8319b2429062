package inventory

import (
	"context"

	"github.com/fjod/storefront/internal/domain"
)

// Inventory moves stock for single products. Both mutations accept an
// idempotency key: replaying a key that already succeeded is a no-op.
type Inventory interface {
	// AddStock increases stock by req.Quantity.
	AddStock(ctx context.Context, req domain.StockRequest) error

	// RemoveStock decreases stock by req.Quantity, failing with
	// domain.ErrInsufficientStock when not enough is available.
	RemoveStock(ctx context.Context, req domain.StockRequest) error

	// History returns the stock changes for a product, newest first.
	History(ctx context.Context, productID string) ([]domain.StockHistoryEntry, error)
}

const (
	ActorSystem = "System"
	ActorAdmin  = "Admin"
)
