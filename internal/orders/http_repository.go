package orders

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
)

// HTTPRepository stores orders through the gateway's /orders endpoints.
type HTTPRepository struct {
	client *gateway.Client
}

func NewHTTPRepository(client *gateway.Client) *HTTPRepository {
	return &HTTPRepository{client: client}
}

type orderItemBody struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type createOrderBody struct {
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Address       string          `json:"address"`
	City          string          `json:"city"`
	ZipCode       string          `json:"zip_code"`
	Items         []orderItemBody `json:"items"`
	Subtotal      string          `json:"subtotal"`
	Tax           string          `json:"tax"`
	Total         string          `json:"total"`
}

func (r *HTTPRepository) Create(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	body := createOrderBody{
		CustomerName:  draft.Customer.Name,
		CustomerEmail: draft.Customer.Email,
		Address:       draft.Customer.Address,
		City:          draft.Customer.City,
		ZipCode:       draft.Customer.ZipCode,
		Items:         make([]orderItemBody, len(draft.Items)),
		Subtotal:      draft.Totals.Subtotal.StringFixed(2),
		Tax:           draft.Totals.Tax.StringFixed(2),
		Total:         draft.Totals.Total.StringFixed(2),
	}
	for i, item := range draft.Items {
		body.Items[i] = orderItemBody{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
		}
	}

	var resp apiOrder
	if err := r.client.Post(ctx, "/orders", body, &resp, gateway.WithIdempotencyKey(draft.IdempotencyKey)); err != nil {
		return nil, err
	}
	order := resp.toDomain()

	// The gateway may echo only the id; fill the rest from what was sent.
	if order.CustomerName == "" {
		order.CustomerName = draft.Customer.Name
		order.CustomerEmail = draft.Customer.Email
	}
	if order.Address == "" {
		order.Address = draft.Customer.Address
		order.City = draft.Customer.City
		order.ZipCode = draft.Customer.ZipCode
	}
	if len(order.Items) == 0 {
		order.Items = append([]domain.OrderItem(nil), draft.Items...)
	}
	if order.Total.IsZero() {
		order.Subtotal = draft.Totals.Subtotal
		order.Tax = draft.Totals.Tax
		order.Total = draft.Totals.Total
	}
	return &order, nil
}

// Get treats any non-2xx from the gateway as not found.
func (r *HTTPRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var resp apiOrder
	if err := r.client.Get(ctx, orderPath(id), &resp); err != nil {
		if gateway.StatusOf(err) != 0 {
			return nil, &domain.NotFoundError{Kind: "order", ID: id, Err: err}
		}
		return nil, err
	}
	order := resp.toDomain()
	return &order, nil
}

func (r *HTTPRepository) List(ctx context.Context, page int, status domain.OrderStatus) (*Listing, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}}
	if status != "" {
		q.Set("status", string(status))
	}
	var resp gateway.Page[apiOrder]
	if err := r.client.Get(ctx, "/orders", &resp, gateway.WithQuery(q)); err != nil {
		return nil, err
	}
	items := make([]domain.Order, len(resp.Data))
	for i, o := range resp.Data {
		items[i] = o.toDomain()
	}
	return &Listing{Items: items, Page: resp.CurrentPage, TotalPages: resp.LastPage, Total: resp.Total}, nil
}

// UpdateStatus sends the expected current status along with the new one; the
// gateway answers 409 when the order has moved on.
func (r *HTTPRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	var resp apiOrder
	body := map[string]string{"status": string(to), "expected_status": string(from)}
	if err := r.client.Put(ctx, orderPath(id)+"/status", body, &resp); err != nil {
		if gateway.StatusOf(err) == http.StatusConflict {
			return nil, fmt.Errorf("%w: %w", domain.ErrIllegalTransition, err)
		}
		return nil, err
	}
	if resp.ID == "" {
		return r.Get(ctx, id)
	}
	order := resp.toDomain()
	return &order, nil
}

func orderPath(id string) string {
	return "/orders/" + url.PathEscape(id)
}

type apiOrderItem struct {
	ProductID   gateway.FlexString `json:"product_id"`
	ProductName string             `json:"product_name"`
	Quantity    int                `json:"quantity"`
	Price       decimal.Decimal    `json:"price"`
}

type apiOrder struct {
	ID            gateway.FlexString `json:"id"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	Address       string             `json:"address"`
	City          string             `json:"city"`
	ZipCode       string             `json:"zip_code"`
	OrderDate     string             `json:"order_date"`
	CreatedAt     string             `json:"created_at"`
	Status        string             `json:"status"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	Tax           decimal.Decimal    `json:"tax"`
	Total         decimal.Decimal    `json:"total"`
	Items         []apiOrderItem     `json:"items"`
}

func (o apiOrder) toDomain() domain.Order {
	out := domain.Order{
		ID:            string(o.ID),
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Address:       o.Address,
		City:          o.City,
		ZipCode:       o.ZipCode,
		Status:        domain.OrderStatus(strings.ToUpper(o.Status)),
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Total:         o.Total,
	}
	date := o.OrderDate
	if date == "" {
		date = o.CreatedAt
	}
	out.OrderDate = gateway.ParseTimestamp(date)
	if !out.Status.Valid() {
		out.Status = domain.OrderStatusPending
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, domain.OrderItem{
			ProductID:   string(item.ProductID),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return out
}
