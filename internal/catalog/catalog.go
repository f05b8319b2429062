package catalog

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fjod/storefront/internal/domain"
)

// Catalog is product access, backed either by the gateway or by a local fixture.
type Catalog interface {
	ListProducts(ctx context.Context, page int) (*Listing, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, draft domain.ProductDraft) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// StockAdjuster is implemented by local backends that own stock counts.
// AdjustStock applies delta and returns the new stock; it never goes below zero.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

// Listing is one page of products.
type Listing struct {
	Items      []domain.Product `json:"items"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	Total      int              `json:"total"`
}

// maxPages bounds ListAll against a gateway that never reports a last page.
const maxPages = 1000

// ListAll loops every page and returns the concatenated listing.
func ListAll(ctx context.Context, c Catalog) ([]domain.Product, error) {
	var all []domain.Product
	for page := 1; page <= maxPages; page++ {
		listing, err := c.ListProducts(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list products page %d: %w", page, err)
		}
		all = append(all, listing.Items...)
		if page >= listing.TotalPages || len(listing.Items) == 0 {
			return all, nil
		}
	}
	return all, nil
}

// DefaultCollectTimeout bounds one shared full-listing fetch.
const DefaultCollectTimeout = 30 * time.Second

// Collector materializes the full listing; concurrent callers share one fetch.
// The fetch runs detached from any one caller, so a caller that gives up does
// not fail the others.
type Collector struct {
	catalog Catalog
	timeout time.Duration
	sfg     singleflight.Group
}

func NewCollector(c Catalog, timeout time.Duration) *Collector {
	if timeout <= 0 {
		timeout = DefaultCollectTimeout
	}
	return &Collector{catalog: c, timeout: timeout}
}

func (c *Collector) All(ctx context.Context) ([]domain.Product, error) {
	ch := c.sfg.DoChan("all", func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return ListAll(fctx, c.catalog)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.Product)), nil
	}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func totalPages(total, perPage int) int {
	if total == 0 || perPage <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
