package domain

import "time"

type StockChange string

const (
	StockAdd    StockChange = "ADD"
	StockDeduct StockChange = "DEDUCT"
)

// StockHistoryEntry is an append-only record of one stock delta. Quantity is
// signed: positive for additions, negative for deductions.
type StockHistoryEntry struct {
	ID          int64       `json:"id"`
	ProductID   string      `json:"product_id"`
	Type        StockChange `json:"type"`
	Quantity    int         `json:"quantity"`
	Date        time.Time   `json:"date"`
	PerformedBy string      `json:"performed_by"`
	Notes       string      `json:"notes,omitempty"`
}

// StockRequest asks the inventory to move stock for one product.
type StockRequest struct {
	ProductID      string
	Quantity       int
	IdempotencyKey string
	Actor          string
	Notes          string
}
