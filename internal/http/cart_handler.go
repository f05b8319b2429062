package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
)

type CartHandler struct {
	carts   *cart.Service
	log     *zap.Logger
	timeout time.Duration
}

func NewCartHandler(carts *cart.Service, log *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, log: log, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID  gateway.FlexString `json:"product_id"`
	Quantity   *int               `json:"quantity"`
	CheckStock bool               `json:"check_stock"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartItemDTO struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type CartResponseDTO struct {
	Items     []CartItemDTO   `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func toCartDTO(c domain.Cart) CartResponseDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for _, li := range c.Items {
		items = append(items, CartItemDTO{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			Price:       li.Price,
			Quantity:    li.Quantity,
			Image:       li.Image,
			Subtotal:    li.Subtotal(),
		})
	}
	totals := c.Totals()
	return CartResponseDTO{
		Items:     items,
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.Total,
		ItemCount: totals.ItemCount,
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.Get(ctx, sessionFromContext(r.Context()))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(c))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	c, err := h.carts.AddToCart(ctx, sessionFromContext(r.Context()), string(req.ProductID), qty,
		cart.AddOptions{CheckStock: req.CheckStock})
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCartDTO(c))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.carts.UpdateQuantity(ctx, sessionFromContext(r.Context()), chi.URLParam(r, "product_id"), req.Quantity)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(c))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.Remove(ctx, sessionFromContext(r.Context()), chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(c))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.Clear(ctx, sessionFromContext(r.Context())); err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(domain.Cart{}))
}
