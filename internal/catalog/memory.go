package catalog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

const DefaultPerPage = 15

// MemoryCatalog is an in-process product store seeded from fixtures.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	order    []string
	nextID   int
	perPage  int
}

func NewMemoryCatalog(seed []domain.Product, perPage int) *MemoryCatalog {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	c := &MemoryCatalog{
		products: make(map[string]*domain.Product, len(seed)),
		perPage:  perPage,
		nextID:   1,
	}
	for _, p := range seed {
		p := p
		c.products[p.ID] = &p
		c.order = append(c.order, p.ID)
		if n, err := strconv.Atoi(p.ID); err == nil && n >= c.nextID {
			c.nextID = n + 1
		}
	}
	return c
}

func (c *MemoryCatalog) ListProducts(_ context.Context, page int) (*Listing, error) {
	page = normalizePage(page)
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.order)
	start := (page - 1) * c.perPage
	items := []domain.Product{}
	for i := start; i < total && i < start+c.perPage; i++ {
		items = append(items, *c.products[c.order[i]])
	}
	return &Listing{
		Items:      items,
		Page:       page,
		TotalPages: totalPages(total, c.perPage),
		Total:      total,
	}, nil
}

func (c *MemoryCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "product", ID: id}
	}
	out := *p
	return &out, nil
}

func (c *MemoryCatalog) CreateProduct(_ context.Context, draft domain.ProductDraft) (*domain.Product, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.products {
		if existing.SKU == draft.SKU {
			return nil, (*domain.ValidationError)(nil).With("sku", "sku already exists")
		}
	}

	now := time.Now().UTC()
	p := &domain.Product{
		ID:          strconv.Itoa(c.nextID),
		Name:        draft.Name,
		Description: draft.Description,
		Price:       draft.Price,
		Stock:       draft.Stock,
		SKU:         draft.SKU,
		Image:       draft.Image,
		Category:    draft.Category,
		Rating:      draft.Rating,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Image == "" {
		p.Image = domain.PlaceholderImage
	}
	c.nextID++
	c.products[p.ID] = p
	c.order = append(c.order, p.ID)

	out := *p
	return &out, nil
}

func (c *MemoryCatalog) UpdateProduct(_ context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "product", ID: id}
	}
	patch.Apply(p)
	p.UpdatedAt = time.Now().UTC()

	out := *p
	return &out, nil
}

func (c *MemoryCatalog) DeleteProduct(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[id]; !ok {
		return &domain.NotFoundError{Kind: "product", ID: id}
	}
	delete(c.products, id)
	for i, pid := range c.order {
		if pid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *MemoryCatalog) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return 0, &domain.NotFoundError{Kind: "product", ID: id}
	}
	if p.Stock+delta < 0 {
		return p.Stock, &domain.StockExceededError{ProductID: id, Requested: -delta, Available: p.Stock}
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	return p.Stock, nil
}
