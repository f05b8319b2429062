package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryFurniture   Category = "FURNITURE"
	CategoryDecor       Category = "DECOR"
	CategoryLighting    Category = "LIGHTING"
	CategoryTextiles    Category = "TEXTILES"
	CategoryAccessories Category = "ACCESSORIES"
)

const (
	PlaceholderImage = "/placeholder.svg"
	DefaultCategory  = CategoryFurniture
	DefaultRating    = 5
)

func (c Category) Valid() bool {
	switch c {
	case CategoryFurniture, CategoryDecor, CategoryLighting, CategoryTextiles, CategoryAccessories:
		return true
	}
	return false
}

// Product is the local view of a catalog entry.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	SKU         string          `json:"sku,omitempty"`
	Image       string          `json:"image"`
	Category    Category        `json:"category"`
	Rating      int             `json:"rating"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at,omitzero"`
	UpdatedAt   time.Time       `json:"updated_at,omitzero"`
}

// StockLabel mirrors the availability badge shown on product pages.
func (p Product) StockLabel() string {
	return StockLabel(p.Stock)
}

func StockLabel(stock int) string {
	switch {
	case stock > 20:
		return "In Stock"
	case stock > 0:
		return "Limited Stock"
	default:
		return "Out of Stock"
	}
}

const (
	StockLevelGood     = "Good"
	StockLevelLow      = "Low"
	StockLevelCritical = "Critical"
)

// LowStockThreshold is the inventory view's low-stock cutoff, inclusive.
const LowStockThreshold = 10

// StockLevel is the inventory view's badge: above 20 Good, above 10 Low,
// otherwise Critical.
func StockLevel(stock int) string {
	switch {
	case stock > 20:
		return StockLevelGood
	case stock > LowStockThreshold:
		return StockLevelLow
	default:
		return StockLevelCritical
	}
}

// ProductDraft is the payload for creating a product. SKU is only ever set here.
type ProductDraft struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku" validate:"required"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Category    Category        `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
	Rating      int             `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

func (d *ProductDraft) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.SKU = strings.TrimSpace(d.SKU)
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	if d.Rating == 0 {
		d.Rating = DefaultRating
	}
}

func (d ProductDraft) Validate() error {
	verr := validateStruct(d)
	if d.Price.IsNegative() {
		verr = verr.With("price", "price must not be negative")
	}
	if d.Category != "" && !d.Category.Valid() {
		verr = verr.With("category", "unknown category")
	}
	return verr.OrNil()
}

// ProductPatch is a partial update. It has no SKU field: SKUs are immutable
// once set. Stock changes go through the inventory ledger only.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *Category        `json:"category,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Rating      *int             `json:"rating,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// Normalize drops an empty image so the server-held one is kept.
func (p *ProductPatch) Normalize() {
	if p.Image != nil && strings.TrimSpace(*p.Image) == "" {
		p.Image = nil
	}
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		p.Name = &n
	}
}

func (p ProductPatch) Validate() error {
	var verr *ValidationError
	if p.Name != nil && *p.Name == "" {
		verr = verr.With("name", "name is required")
	}
	if p.Price != nil && p.Price.IsNegative() {
		verr = verr.With("price", "price must not be negative")
	}
	if p.Rating != nil && (*p.Rating < 1 || *p.Rating > 5) {
		verr = verr.With("rating", "rating must be between 1 and 5")
	}
	if p.Category != nil && !p.Category.Valid() {
		verr = verr.With("category", "unknown category")
	}
	return verr.OrNil()
}

// Apply copies the set fields onto product.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Image != nil {
		product.Image = *p.Image
	}
	if p.Rating != nil {
		product.Rating = *p.Rating
	}
	if p.IsActive != nil {
		product.IsActive = *p.IsActive
	}
}
