package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
)

type ProductHandler struct {
	catalog   catalog.Catalog
	collector *catalog.Collector
	log       *zap.Logger
	timeout   time.Duration
}

func NewProductHandler(cat catalog.Catalog, collector *catalog.Collector, log *zap.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: cat, collector: collector, log: log, timeout: timeout}
}

type ProductDTO struct {
	domain.Product
	StockLabel string `json:"stock_label"`
}

type ProductListDTO struct {
	Items      []ProductDTO `json:"items"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Total      int          `json:"total"`
}

func toProductDTOs(products []domain.Product) []ProductDTO {
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, ProductDTO{Product: p, StockLabel: p.StockLabel()})
	}
	return dtos
}

// GET /api/v1/products?page=N or ?all=true
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		products, err := h.collector.All(ctx)
		if err != nil {
			handleError(w, h.log, err)
			return
		}
		respondJSON(w, http.StatusOK, ProductListDTO{
			Items:      toProductDTOs(products),
			Page:       1,
			TotalPages: 1,
			Total:      len(products),
		})
		return
	}

	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	listing, err := h.catalog.ListProducts(ctx, page)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductListDTO{
		Items:      toProductDTOs(listing.Items),
		Page:       listing.Page,
		TotalPages: listing.TotalPages,
		Total:      listing.Total,
	})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductDTO{Product: *product, StockLabel: product.StockLabel()})
}

func pageParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		respondError(w, http.StatusBadRequest, "invalid_page", "page must be a positive integer")
		return 0, false
	}
	return page, true
}
