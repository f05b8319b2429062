package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleError maps the error taxonomy onto a status code and error body.
func handleError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, body)
}

func classifyError(err error) (int, ErrorResponse) {
	var (
		validation *domain.ValidationError
		stock      *domain.StockExceededError
		partial    *checkout.PartialCheckoutFailure
		httpErr    *gateway.HTTPError
		netErr     *gateway.NetworkError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation_failed", Details: validation.Fields}
	case errors.As(err, &partial):
		return http.StatusBadGateway, ErrorResponse{
			Error:   "checkout failed; stock changes were reverted where possible",
			Code:    "partial_checkout_failure",
			Details: map[string]any{"reason": partial.Cause.Error(), "deductions": partial.Deductions},
		}
	case errors.As(err, &stock):
		return http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "insufficient_stock",
			Details: map[string]any{
				"product_id": stock.ProductID,
				"requested":  stock.Requested,
				"available":  stock.Available,
			},
		}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "empty_cart"}
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_quantity"}
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "checkout_in_progress"}
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "illegal_transition"}
	case errors.As(err, &httpErr):
		status := httpErr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		return status, ErrorResponse{Error: httpErr.Message, Code: "gateway_error"}
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return http.StatusGatewayTimeout, ErrorResponse{Error: "gateway timed out", Code: "timeout"}
		}
		return http.StatusServiceUnavailable, ErrorResponse{Error: "gateway unavailable", Code: "service_unavailable"}
	case errors.Is(err, checkout.ErrStockDeductionFailed):
		return http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "stock_deduction_failed"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out", Code: "timeout"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal_error"}
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
