package inventory

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
)

// HTTPInventory forwards stock changes to the gateway's /stock endpoints.
type HTTPInventory struct {
	client *gateway.Client
}

func NewHTTPInventory(client *gateway.Client) *HTTPInventory {
	return &HTTPInventory{client: client}
}

type stockBody struct {
	Quantity    int    `json:"quantity"`
	Notes       string `json:"notes,omitempty"`
	PerformedBy string `json:"performed_by,omitempty"`
}

func (i *HTTPInventory) AddStock(ctx context.Context, req domain.StockRequest) error {
	return i.post(ctx, req, "add")
}

func (i *HTTPInventory) RemoveStock(ctx context.Context, req domain.StockRequest) error {
	return i.post(ctx, req, "remove")
}

func (i *HTTPInventory) post(ctx context.Context, req domain.StockRequest, action string) error {
	if req.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	body := stockBody{Quantity: req.Quantity, Notes: req.Notes, PerformedBy: req.Actor}
	path := "/stock/" + url.PathEscape(req.ProductID) + "/" + action
	return i.client.Post(ctx, path, body, nil, gateway.WithIdempotencyKey(req.IdempotencyKey))
}

// maxHistoryPages bounds History against a gateway that never reports a last page.
const maxHistoryPages = 100

// History reads every page of the product's ledger.
func (i *HTTPInventory) History(ctx context.Context, productID string) ([]domain.StockHistoryEntry, error) {
	path := "/stock/" + url.PathEscape(productID) + "/history"
	var entries []domain.StockHistoryEntry
	for n := 1; n <= maxHistoryPages; n++ {
		var page gateway.Page[apiStockEntry]
		q := url.Values{"page": {strconv.Itoa(n)}}
		if err := i.client.Get(ctx, path, &page, gateway.WithQuery(q)); err != nil {
			return nil, fmt.Errorf("stock history page %d: %w", n, err)
		}
		for _, e := range page.Data {
			entries = append(entries, e.toDomain(productID))
		}
		if !page.HasNext() || len(page.Data) == 0 {
			break
		}
	}
	return entries, nil
}

type apiStockEntry struct {
	ID          int64              `json:"id"`
	ProductID   gateway.FlexString `json:"product_id"`
	Type        string             `json:"type"`
	Quantity    int                `json:"quantity"`
	Date        string             `json:"date"`
	CreatedAt   string             `json:"created_at"`
	PerformedBy string             `json:"performed_by"`
	Notes       string             `json:"notes"`
}

// toDomain normalizes the entry so deductions always carry a negative quantity.
func (e apiStockEntry) toDomain(productID string) domain.StockHistoryEntry {
	out := domain.StockHistoryEntry{
		ID:          e.ID,
		ProductID:   string(e.ProductID),
		Type:        domain.StockChange(strings.ToUpper(e.Type)),
		Quantity:    e.Quantity,
		PerformedBy: e.PerformedBy,
		Notes:       e.Notes,
	}
	if out.ProductID == "" {
		out.ProductID = productID
	}
	date := e.Date
	if date == "" {
		date = e.CreatedAt
	}
	out.Date = gateway.ParseTimestamp(date)

	switch {
	case out.Type == domain.StockDeduct && out.Quantity > 0:
		out.Quantity = -out.Quantity
	case out.Type == "" && out.Quantity < 0:
		out.Type = domain.StockDeduct
	case out.Type == "":
		out.Type = domain.StockAdd
	}
	return out
}
