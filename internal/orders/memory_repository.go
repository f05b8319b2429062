package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

const defaultPerPage = 10

// MemoryRepository keeps orders in process and numbers them ORD-001, ORD-002, ...
type MemoryRepository struct {
	mu      sync.RWMutex
	orders  []*domain.Order // creation order
	byID    map[string]*domain.Order
	byKey   map[string]string // idempotency key -> order id
	perPage int
	now     func() time.Time
}

func NewMemoryRepository(perPage int) *MemoryRepository {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return &MemoryRepository{
		byID:    make(map[string]*domain.Order),
		byKey:   make(map[string]string),
		perPage: perPage,
		now:     time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[draft.IdempotencyKey]; ok && draft.IdempotencyKey != "" {
		return copyOrder(r.byID[id]), nil
	}

	order := &domain.Order{
		ID:            fmt.Sprintf("ORD-%03d", len(r.orders)+1),
		CustomerName:  draft.Customer.Name,
		CustomerEmail: draft.Customer.Email,
		Address:       draft.Customer.Address,
		City:          draft.Customer.City,
		ZipCode:       draft.Customer.ZipCode,
		OrderDate:     r.now().UTC(),
		Status:        domain.OrderStatusPending,
		Subtotal:      draft.Totals.Subtotal,
		Tax:           draft.Totals.Tax,
		Total:         draft.Totals.Total,
		Items:         append([]domain.OrderItem(nil), draft.Items...),
	}
	r.orders = append(r.orders, order)
	r.byID[order.ID] = order
	if draft.IdempotencyKey != "" {
		r.byKey[draft.IdempotencyKey] = order.ID
	}
	return copyOrder(order), nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.byID[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "order", ID: id}
	}
	return copyOrder(order), nil
}

func (r *MemoryRepository) List(_ context.Context, page int, status domain.OrderStatus) (*Listing, error) {
	if page < 1 {
		page = 1
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.Order
	for i := len(r.orders) - 1; i >= 0; i-- {
		if status == "" || r.orders[i].Status == status {
			matched = append(matched, r.orders[i])
		}
	}

	items := []domain.Order{}
	start := (page - 1) * r.perPage
	for i := start; i < len(matched) && i < start+r.perPage; i++ {
		items = append(items, *copyOrder(matched[i]))
	}
	totalPages := (len(matched) + r.perPage - 1) / r.perPage
	if totalPages == 0 {
		totalPages = 1
	}
	return &Listing{Items: items, Page: page, TotalPages: totalPages, Total: len(matched)}, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.byID[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "order", ID: id}
	}
	if order.Status != from {
		return nil, fmt.Errorf("%w: order %s is %s, not %s", domain.ErrIllegalTransition, id, order.Status, from)
	}
	order.Status = to
	return copyOrder(order), nil
}

func copyOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.OrderItem(nil), o.Items...)
	return &out
}
