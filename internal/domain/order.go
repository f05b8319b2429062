package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusCompleted},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether an order may move from one status to another.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type Order struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Address       string          `json:"address,omitempty"`
	City          string          `json:"city,omitempty"`
	ZipCode       string          `json:"zip_code,omitempty"`
	OrderDate     time.Time       `json:"order_date"`
	Status        OrderStatus     `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItem     `json:"items"`
}

// OrderDraft is what checkout submits; the backend assigns id and date.
type OrderDraft struct {
	Customer       CustomerInfo
	Items          []OrderItem
	Totals         Totals
	IdempotencyKey string
}

// NewOrderDraft snapshots the cart lines and totals for order creation.
func NewOrderDraft(customer CustomerInfo, cart Cart, idempotencyKey string) OrderDraft {
	items := make([]OrderItem, len(cart.Items))
	for i, li := range cart.Items {
		items[i] = OrderItem{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			Quantity:    li.Quantity,
			Price:       li.Price,
		}
	}
	return OrderDraft{
		Customer:       customer,
		Items:          items,
		Totals:         cart.Totals(),
		IdempotencyKey: idempotencyKey,
	}
}
