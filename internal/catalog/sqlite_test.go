package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/storefront/internal/domain"
)

func setupSQLite(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"), 5)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLiteCatalog_SeededFromMigrations(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()

	listing, err := c.ListProducts(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 9, listing.Total)
	assert.Equal(t, 2, listing.TotalPages)
	assert.Len(t, listing.Items, 4)

	p, err := c.GetProduct(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Premium Cushion", p.Name)
	assert.Equal(t, "89.00", p.Price.StringFixed(2))
	assert.Equal(t, domain.CategoryTextiles, p.Category)
	assert.True(t, p.IsActive)
	assert.Equal(t, 2024, p.CreatedAt.Year())
}

func TestSQLiteCatalog_MigrationsAreIdempotent(t *testing.T) {
	c := setupSQLite(t)
	require.NoError(t, c.RunMigrations())
}

func TestSQLiteCatalog_NotFound(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()

	_, err := c.GetProduct(ctx, "-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = c.GetProduct(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, c.DeleteProduct(ctx, "1000"), domain.ErrNotFound)
}

func TestSQLiteCatalog_CreateUpdateDelete(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()

	created, err := c.CreateProduct(ctx, domain.ProductDraft{
		Name: "Floor Lamp", SKU: "LGT-FLR-010", Price: decimal.RequireFromString("149.5"), Stock: 6,
		Category: domain.CategoryLighting,
	})
	require.NoError(t, err)
	assert.Equal(t, "10", created.ID)
	assert.Equal(t, "149.50", created.Price.StringFixed(2))

	_, err = c.CreateProduct(ctx, domain.ProductDraft{Name: "Dup", SKU: "LGT-FLR-010", Price: decimal.NewFromInt(1)})
	assert.Error(t, err)

	desc := "Arc floor lamp"
	updated, err := c.UpdateProduct(ctx, created.ID, domain.ProductPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	reread, err := c.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, desc, reread.Description)
	assert.Equal(t, "LGT-FLR-010", reread.SKU)

	require.NoError(t, c.DeleteProduct(ctx, created.ID))
	_, err = c.GetProduct(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteCatalog_AdjustStock(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()

	stock, err := c.AdjustStock(ctx, "3", -8)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)

	_, err = c.AdjustStock(ctx, "3", -1)
	var se *domain.StockExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Available)

	stock, err = c.AdjustStock(ctx, "3", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, stock)
}
