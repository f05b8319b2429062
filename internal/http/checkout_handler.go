package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
)

type CheckoutHandler struct {
	checkout *checkout.Service
	log      *zap.Logger
	timeout  time.Duration
}

func NewCheckoutHandler(svc *checkout.Service, log *zap.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc, log: log, timeout: timeout}
}

type PlaceOrderRequestDTO struct {
	Customer       domain.CustomerInfo `json:"customer"`
	IdempotencyKey string              `json:"idempotency_key"`
}

type CheckoutResponseDTO struct {
	Order    *domain.Order `json:"order"`
	Replayed bool          `json:"replayed"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	res, err := h.checkout.PlaceOrder(ctx, checkout.Request{
		SessionID:      sessionFromContext(r.Context()),
		Customer:       req.Customer,
		IdempotencyKey: key,
	})
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, CheckoutResponseDTO{Order: res.Order, Replayed: res.Replayed})
}
