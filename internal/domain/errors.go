package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrIllegalTransition = errors.New("illegal transition of order status")
)

// NotFoundError is returned when the gateway has no such resource. The UI treats
// it as terminal and does not retry.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q not found: %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StockExceededError rejects a quantity larger than the available stock.
type StockExceededError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("not enough stock available for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockExceededError) Is(target error) bool { return target == ErrInsufficientStock }

// ValidationError collects per-field messages from local input checks.
// A nil *ValidationError means no problems; use OrNil before returning it as error.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// With records a message for field, allocating on first use.
func (e *ValidationError) With(field, message string) *ValidationError {
	if e == nil {
		e = &ValidationError{Fields: map[string]string{}}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
	return e
}

func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
