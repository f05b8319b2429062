package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
)

func newHTTPCatalog(t *testing.T, handler http.HandlerFunc) *HTTPCatalog {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPCatalog(gateway.NewClient(srv.URL, gateway.Options{HTTPClient: srv.Client()}))
}

const productPage = `{
	"current_page": 1,
	"data": [
		{"id": 1, "name": "Premium Cushion", "description": "Velvet", "price": "89.00", "sku": "TXT-CUSH-001",
		 "stock": 45, "is_active": 1, "created_at": "2024-11-15T10:00:00.000000Z", "updated_at": "2024-12-10 08:30:00",
		 "image": "/images.jpg", "category": "textiles", "rating": 4},
		{"id": "2", "name": "Bare", "description": "", "price": 12.5, "sku": "B-2", "stock": 0, "is_active": 0,
		 "created_at": "2024-10-20", "updated_at": null}
	],
	"last_page": 3,
	"per_page": 2,
	"total": 5
}`

func TestHTTPCatalog_ListProducts_Normalizes(t *testing.T) {
	c := newHTTPCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(productPage))
	})

	listing, err := c.ListProducts(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, listing.Page)
	assert.Equal(t, 3, listing.TotalPages)
	assert.Equal(t, 5, listing.Total)
	require.Len(t, listing.Items, 2)

	full := listing.Items[0]
	assert.Equal(t, "1", full.ID)
	assert.True(t, full.Price.Equal(decimal.NewFromInt(89)))
	assert.Equal(t, domain.CategoryTextiles, full.Category)
	assert.Equal(t, 4, full.Rating)
	assert.True(t, full.IsActive)
	assert.Equal(t, 2024, full.CreatedAt.Year())
	assert.Equal(t, 8, full.UpdatedAt.Hour())

	bare := listing.Items[1]
	assert.Equal(t, "2", bare.ID)
	assert.Equal(t, "12.5", bare.Price.String())
	assert.Equal(t, domain.PlaceholderImage, bare.Image)
	assert.Equal(t, domain.DefaultCategory, bare.Category)
	assert.Equal(t, domain.DefaultRating, bare.Rating)
	assert.False(t, bare.IsActive)
	assert.True(t, bare.UpdatedAt.IsZero())
}

func TestHTTPCatalog_GetProduct_UnwrapsDataEnvelope(t *testing.T) {
	c := newHTTPCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/5", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":5,"name":"Ceramic Vase Set","price":"129.00","stock":31,"is_active":true}}`))
	})

	p, err := c.GetProduct(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "Ceramic Vase Set", p.Name)
	assert.Equal(t, 31, p.Stock)
	assert.True(t, p.IsActive)
}

func TestHTTPCatalog_GetProduct_Non2xxIsNotFound(t *testing.T) {
	c := newHTTPCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GetProduct(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var he *gateway.HTTPError
	assert.True(t, errors.As(err, &he))
}

func TestHTTPCatalog_UpdateProduct_OmitsSKUAndEmptyImage(t *testing.T) {
	var sent map[string]any
	c := newHTTPCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		_, _ = w.Write([]byte(`{"id":3,"name":"Rug","price":"410.00","image":"/server.jpg","sku":"TXT-RUG-003"}`))
	})

	name := "Rug"
	price := decimal.RequireFromString("410")
	image := ""
	p, err := c.UpdateProduct(context.Background(), "3", domain.ProductPatch{Name: &name, Price: &price, Image: &image})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"name": "Rug", "price": "410.00"}, sent)
	assert.Equal(t, "/server.jpg", p.Image)
	assert.Equal(t, "TXT-RUG-003", p.SKU)
}

func TestHTTPCatalog_CreateProduct_ValidatesLocally(t *testing.T) {
	c := newHTTPCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called for an invalid draft")
	})

	_, err := c.CreateProduct(context.Background(), domain.ProductDraft{Name: "No SKU", Price: decimal.NewFromInt(1)})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "sku")
}

func TestHTTPCatalog_CreateProduct(t *testing.T) {
	c := newHTTPCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "LMP-1", body["sku"])
		assert.Equal(t, "19.90", body["price"])
		assert.NotContains(t, body, "image")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":10,"name":"Lamp","price":"19.90","sku":"LMP-1","stock":4}}`))
	})

	p, err := c.CreateProduct(context.Background(), domain.ProductDraft{
		Name: "Lamp", SKU: "LMP-1", Price: decimal.RequireFromString("19.9"), Stock: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "10", p.ID)
	assert.Equal(t, domain.PlaceholderImage, p.Image)
}

func TestListAll_LoopsEveryPage(t *testing.T) {
	c := newHTTPCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		_, _ = w.Write([]byte(`{"current_page":` + page + `,"data":[{"id":"p` + page + `"}],"last_page":3,"total":3}`))
	})

	all, err := ListAll(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p1", all[0].ID)
	assert.Equal(t, "p3", all[2].ID)
}
