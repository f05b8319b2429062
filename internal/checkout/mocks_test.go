package checkout

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/inventory"
	"github.com/fjod/storefront/internal/orders"
)

// MockInventory records every call and fails chosen products; everything else
// goes to the wrapped inventory.
type MockInventory struct {
	inventory.Inventory

	mu         sync.Mutex
	FailRemove map[string]error
	FailAdd    map[string]error
	Removes    []domain.StockRequest
	Adds       []domain.StockRequest
}

func (m *MockInventory) RemoveStock(ctx context.Context, req domain.StockRequest) error {
	m.mu.Lock()
	m.Removes = append(m.Removes, req)
	err := m.FailRemove[req.ProductID]
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Inventory.RemoveStock(ctx, req)
}

func (m *MockInventory) AddStock(ctx context.Context, req domain.StockRequest) error {
	m.mu.Lock()
	m.Adds = append(m.Adds, req)
	err := m.FailAdd[req.ProductID]
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Inventory.AddStock(ctx, req)
}

func (m *MockInventory) calls() (removes, adds []domain.StockRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StockRequest(nil), m.Removes...), append([]domain.StockRequest(nil), m.Adds...)
}

// MockOrders wraps an order repository and can fail Create.
type MockOrders struct {
	orders.Repository

	CreateErr   error
	CreateCalls int
}

func (m *MockOrders) Create(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return m.Repository.Create(ctx, draft)
}

// MockPublisher records events. With Hang set it blocks until ctx is done,
// like a writer stuck on an unreachable broker.
type MockPublisher struct {
	mu        sync.Mutex
	Events    []events.Event
	Err       error
	Hang      bool
	OnPublish func()
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	hang, hook, err := m.Hang, m.OnPublish, m.Err
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Type, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Type
	}
	return out
}
