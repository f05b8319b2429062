package orders

import (
	"context"

	"github.com/fjod/storefront/internal/domain"
)

type Repository interface {
	// Create records a new PENDING order. Repeating a draft's idempotency
	// key returns the order created the first time.
	Create(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	// List returns one page of orders, newest first. An empty status matches all.
	List(ctx context.Context, page int, status domain.OrderStatus) (*Listing, error)
	// UpdateStatus moves the order from one status to another. It fails with
	// ErrIllegalTransition when the order is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

type Listing struct {
	Items      []domain.Order `json:"items"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
}
