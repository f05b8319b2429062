package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/inventory"
	"github.com/fjod/storefront/internal/logger"
)

// AdminHandler serves product management and stock adjustments.
type AdminHandler struct {
	catalog   catalog.Catalog
	collector *catalog.Collector
	inventory *inventory.Service
	log       *zap.Logger
	timeout   time.Duration
}

func NewAdminHandler(cat catalog.Catalog, collector *catalog.Collector, inv *inventory.Service, log *zap.Logger, timeout time.Duration) *AdminHandler {
	return &AdminHandler{catalog: cat, collector: collector, inventory: inv, log: log, timeout: timeout}
}

type StockRequestDTO struct {
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

type InventoryItemDTO struct {
	ProductDTO
	Level string `json:"level"`
}

// InventoryResponseDTO carries the items matching the search; the figures
// always cover the whole catalog.
type InventoryResponseDTO struct {
	Items      []InventoryItemDTO `json:"items"`
	Total      int                `json:"total"`
	TotalStock int                `json:"total_stock"`
	TotalValue decimal.Decimal    `json:"total_value"`
	LowStock   int                `json:"low_stock"`
	OutOfStock int                `json:"out_of_stock"`
}

// GET /api/v1/admin/inventory?q=text
func (h *AdminHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.collector.All(ctx)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	resp := InventoryResponseDTO{Items: []InventoryItemDTO{}, Total: len(products), TotalValue: decimal.Zero}
	for _, p := range products {
		resp.TotalStock += p.Stock
		resp.TotalValue = resp.TotalValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
		if p.Stock <= domain.LowStockThreshold {
			resp.LowStock++
		}
		if p.Stock == 0 {
			resp.OutOfStock++
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		resp.Items = append(resp.Items, InventoryItemDTO{
			ProductDTO: ProductDTO{Product: p, StockLabel: p.StockLabel()},
			Level:      domain.StockLevel(p.Stock),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// POST /api/v1/admin/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var draft domain.ProductDraft
	if err := decodeJSON(r, &draft); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.catalog.CreateProduct(ctx, draft)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	logger.WithContext(ctx, h.log).Info("product created", zap.String("product_id", product.ID), zap.String("sku", product.SKU))
	respondJSON(w, http.StatusCreated, ProductDTO{Product: *product, StockLabel: product.StockLabel()})
}

// PUT /api/v1/admin/products/{id}
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var patch domain.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductDTO{Product: *product, StockLabel: product.StockLabel()})
}

// DELETE /api/v1/admin/products/{id}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.catalog.DeleteProduct(ctx, id); err != nil {
		handleError(w, h.log, err)
		return
	}
	logger.WithContext(ctx, h.log).Info("product deleted", zap.String("product_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/admin/stock/{id}/add
func (h *AdminHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.inventory.Add)
}

// POST /api/v1/admin/stock/{id}/remove
func (h *AdminHandler) RemoveStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.inventory.Remove)
}

func (h *AdminHandler) adjustStock(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, productID string, qty int, notes string) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req StockRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := apply(ctx, id, req.Quantity, req.Notes); err != nil {
		handleError(w, h.log, err)
		return
	}

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductDTO{Product: *product, StockLabel: product.StockLabel()})
}

// GET /api/v1/admin/stock/{id}/history
func (h *AdminHandler) StockHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entries, err := h.inventory.History(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	if entries == nil {
		entries = []domain.StockHistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}
