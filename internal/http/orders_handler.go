package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/orders"
)

type OrdersHandler struct {
	orders  *orders.Service
	log     *zap.Logger
	timeout time.Duration
}

func NewOrdersHandler(svc *orders.Service, log *zap.Logger, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: svc, log: log, timeout: timeout}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type OrderListResponseDTO struct {
	orders.Listing
	Summary *orders.Summary `json:"summary"`
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/admin/orders?page=N&status=S&q=text
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	status := domain.OrderStatus(strings.ToUpper(query.Get("status")))

	listing, err := h.orders.List(ctx, page, status, query.Get("q"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	if listing.Items == nil {
		listing.Items = []domain.Order{}
	}
	summary, err := h.orders.Summary(ctx)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderListResponseDTO{Listing: *listing, Summary: summary})
}

// PUT /api/v1/admin/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.Transition(ctx, chi.URLParam(r, "order_id"), domain.OrderStatus(strings.ToUpper(req.Status)))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
