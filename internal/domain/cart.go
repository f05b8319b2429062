package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate is applied to the cart subtotal.
var TaxRate = decimal.RequireFromString("0.10")

// LineItem is one product in the cart. Price is a snapshot taken when the
// product was first added and is never re-fetched.
type LineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart holds at most one line item per product id, in insertion order.
type Cart struct {
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Add increments the quantity of an existing line or appends a new one
// snapshotting the product's current name, price and image.
func (c *Cart) Add(p Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if i := c.index(p.ID); i >= 0 {
		c.Items[i].Quantity += qty
		return nil
	}
	c.Items = append(c.Items, LineItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Quantity:    qty,
		Image:       p.Image,
	})
	return nil
}

// UpdateQuantity sets the quantity in place. Quantities below 1 are ignored.
// It reports whether the cart changed.
func (c *Cart) UpdateQuantity(productID string, qty int) bool {
	if qty < 1 {
		return false
	}
	i := c.index(productID)
	if i < 0 || c.Items[i].Quantity == qty {
		return false
	}
	c.Items[i].Quantity = qty
	return true
}

// Remove drops the line for productID; absent ids are a no-op.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) Find(productID string) (LineItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total is the sum of price × quantity over all lines, before tax.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) Totals() Totals {
	subtotal := c.Total()
	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal.Add(tax),
		ItemCount: c.ItemCount(),
	}
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (c *Cart) Snapshot() Cart {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items, UpdatedAt: c.UpdatedAt}
}

func (c *Cart) index(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
