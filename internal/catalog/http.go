package catalog

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
)

// HTTPCatalog reads and mutates products through the REST gateway.
type HTTPCatalog struct {
	client *gateway.Client
}

func NewHTTPCatalog(client *gateway.Client) *HTTPCatalog {
	return &HTTPCatalog{client: client}
}

func (c *HTTPCatalog) ListProducts(ctx context.Context, page int) (*Listing, error) {
	page = normalizePage(page)
	var resp gateway.Page[apiProduct]
	q := url.Values{"page": {strconv.Itoa(page)}}
	if err := c.client.Get(ctx, "/products", &resp, gateway.WithQuery(q)); err != nil {
		return nil, err
	}
	items := make([]domain.Product, len(resp.Data))
	for i, ap := range resp.Data {
		items[i] = ap.toDomain()
	}
	return &Listing{
		Items:      items,
		Page:       resp.CurrentPage,
		TotalPages: resp.LastPage,
		Total:      resp.Total,
	}, nil
}

// GetProduct treats any non-2xx from the gateway as not found.
func (c *HTTPCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var ap apiProduct
	if err := c.client.Get(ctx, productPath(id), &ap); err != nil {
		if gateway.StatusOf(err) != 0 {
			return nil, &domain.NotFoundError{Kind: "product", ID: id, Err: err}
		}
		return nil, err
	}
	p := ap.toDomain()
	return &p, nil
}

func (c *HTTPCatalog) CreateProduct(ctx context.Context, draft domain.ProductDraft) (*domain.Product, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"name":        draft.Name,
		"description": draft.Description,
		"price":       draft.Price.StringFixed(2),
		"sku":         draft.SKU,
		"stock":       draft.Stock,
		"category":    draft.Category,
		"rating":      draft.Rating,
	}
	if draft.Image != "" {
		body["image"] = draft.Image
	}
	var ap apiProduct
	if err := c.client.Post(ctx, "/products", body, &ap); err != nil {
		return nil, err
	}
	p := ap.toDomain()
	return &p, nil
}

// UpdateProduct sends only the fields set in patch. The SKU is never sent and
// the image only when a new one was supplied.
func (c *HTTPCatalog) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var ap apiProduct
	if err := c.client.Put(ctx, productPath(id), patchBody(patch), &ap); err != nil {
		return nil, err
	}
	if ap.ID == "" {
		return c.GetProduct(ctx, id)
	}
	p := ap.toDomain()
	return &p, nil
}

func (c *HTTPCatalog) DeleteProduct(ctx context.Context, id string) error {
	return c.client.Delete(ctx, productPath(id))
}

func productPath(id string) string {
	return "/products/" + url.PathEscape(id)
}

func patchBody(p domain.ProductPatch) map[string]any {
	body := map[string]any{}
	if p.Name != nil {
		body["name"] = *p.Name
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.Price != nil {
		body["price"] = p.Price.StringFixed(2)
	}
	if p.Category != nil {
		body["category"] = *p.Category
	}
	if p.Image != nil {
		body["image"] = *p.Image
	}
	if p.Rating != nil {
		body["rating"] = *p.Rating
	}
	if p.IsActive != nil {
		body["is_active"] = *p.IsActive
	}
	return body
}

// apiProduct is the gateway's product shape: string prices, numeric or string
// ids, is_active as 0/1 and optional display fields.
type apiProduct struct {
	ID          gateway.FlexString `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Price       decimal.Decimal    `json:"price"`
	SKU         string             `json:"sku"`
	Stock       int                `json:"stock"`
	IsActive    gateway.FlexBool   `json:"is_active"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
	Image       string             `json:"image"`
	Category    string             `json:"category"`
	Rating      float64            `json:"rating"`
}

func (ap apiProduct) toDomain() domain.Product {
	p := domain.Product{
		ID:          string(ap.ID),
		Name:        ap.Name,
		Description: ap.Description,
		Price:       ap.Price,
		Stock:       ap.Stock,
		SKU:         ap.SKU,
		Image:       ap.Image,
		Category:    domain.Category(strings.ToUpper(ap.Category)),
		Rating:      int(math.Round(ap.Rating)),
		IsActive:    bool(ap.IsActive),
		CreatedAt:   gateway.ParseTimestamp(ap.CreatedAt),
		UpdatedAt:   gateway.ParseTimestamp(ap.UpdatedAt),
	}
	if p.Image == "" {
		p.Image = domain.PlaceholderImage
	}
	if p.Category == "" {
		p.Category = domain.DefaultCategory
	}
	if p.Rating == 0 {
		p.Rating = domain.DefaultRating
	}
	return p
}
