package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
)

// maxPages bounds the full scans behind search and summary.
const maxPages = 1000

// Service is the admin order surface.
type Service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Summary is the headline figures of the order dashboard. Revenue counts
// completed orders only.
type Summary struct {
	Total     int             `json:"total"`
	Pending   int             `json:"pending"`
	Completed int             `json:"completed"`
	Revenue   decimal.Decimal `json:"revenue"`
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of orders. A non-empty search matches the order id,
// customer name or email, case-insensitively, and returns every match as a
// single page.
func (s *Service) List(ctx context.Context, page int, status domain.OrderStatus, search string) (*Listing, error) {
	if status != "" && !status.Valid() {
		return nil, (*domain.ValidationError)(nil).With("status", "unknown order status")
	}
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return s.repo.List(ctx, page, status)
	}

	all, err := s.all(ctx, status)
	if err != nil {
		return nil, err
	}
	matched := []domain.Order{}
	for _, o := range all {
		if matches(o, search) {
			matched = append(matched, o)
		}
	}
	return &Listing{Items: matched, Page: 1, TotalPages: 1, Total: len(matched)}, nil
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	all, err := s.all(ctx, "")
	if err != nil {
		return nil, err
	}
	sum := &Summary{Total: len(all), Revenue: decimal.Zero}
	for _, o := range all {
		switch o.Status {
		case domain.OrderStatusPending:
			sum.Pending++
		case domain.OrderStatusCompleted:
			sum.Completed++
			sum.Revenue = sum.Revenue.Add(o.Total)
		}
	}
	return sum, nil
}

// Transition moves an order to a new status if the lifecycle allows it. The
// repository re-checks the current status so concurrent transitions cannot
// both apply.
func (s *Service) Transition(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, (*domain.ValidationError)(nil).With("status", "unknown order status")
	}
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(order.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, order.Status, to)
	}
	updated, err := s.repo.UpdateStatus(ctx, id, order.Status, to)
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx, s.log).Info("order status changed",
		zap.String("order_id", id),
		zap.Stringer("from", order.Status),
		zap.Stringer("to", to))
	return updated, nil
}

func (s *Service) all(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	var all []domain.Order
	for page := 1; page <= maxPages; page++ {
		listing, err := s.repo.List(ctx, page, status)
		if err != nil {
			return nil, fmt.Errorf("list orders page %d: %w", page, err)
		}
		all = append(all, listing.Items...)
		if page >= listing.TotalPages || len(listing.Items) == 0 {
			break
		}
	}
	return all, nil
}

func matches(o domain.Order, search string) bool {
	return strings.Contains(strings.ToLower(o.ID), search) ||
		strings.Contains(strings.ToLower(o.CustomerName), search) ||
		strings.Contains(strings.ToLower(o.CustomerEmail), search)
}
