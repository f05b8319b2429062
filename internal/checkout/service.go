package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/gateway"
	"github.com/fjod/storefront/internal/inventory"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/orders"
)

type DeductionStatus string

const (
	DeductionApplied            DeductionStatus = "applied"
	DeductionRejected           DeductionStatus = "rejected"
	DeductionUnknown            DeductionStatus = "unknown"
	DeductionCompensated        DeductionStatus = "compensated"
	DeductionCompensationFailed DeductionStatus = "compensation_failed"
)

// Deduction is the outcome of removing one line item's quantity from stock.
type Deduction struct {
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
	IdempotencyKey string          `json:"idempotency_key"`
	Status         DeductionStatus `json:"status"`
	Error          string          `json:"error,omitempty"`

	err error
}

// CartOwner runs fn against a locked snapshot of the session cart and clears
// the cart when fn succeeds.
type CartOwner interface {
	Checkout(ctx context.Context, sessionID string, fn func(ctx context.Context, cart domain.Cart) error) error
}

type Options struct {
	DeductionTimeout time.Duration
	Workers          int
	// PublishTimeout bounds each event publish; events never fail a checkout.
	PublishTimeout time.Duration
}

type Service struct {
	carts     CartOwner
	inventory inventory.Inventory
	orders    orders.Repository
	idem      IdempotencyStore
	publisher events.Publisher
	log       *zap.Logger
	opts      Options
}

func NewService(
	carts CartOwner,
	inv inventory.Inventory,
	repo orders.Repository,
	idem IdempotencyStore,
	publisher events.Publisher,
	log *zap.Logger,
	opts Options) *Service {
	if opts.DeductionTimeout <= 0 {
		opts.DeductionTimeout = 5 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	return &Service{
		carts:     carts,
		inventory: inv,
		orders:    repo,
		idem:      idem,
		publisher: publisher,
		log:       log,
		opts:      opts,
	}
}

type Request struct {
	SessionID      string
	Customer       domain.CustomerInfo
	IdempotencyKey string
}

type Result struct {
	Order *domain.Order
	// Replayed is set when the key had already produced this order.
	Replayed bool
}

// PlaceOrder validates the customer, deducts stock for every line item and
// creates the order. On any failure the cart is left intact and applied
// deductions are compensated.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	log := logger.WithContext(ctx, s.log).With(zap.String("session_id", req.SessionID))

	req.Customer.Normalize()
	if err := req.Customer.Validate(); err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	log = log.With(zap.String("idempotency_key", key))

	// Keys are scoped to the session.
	scope := sessionScoped(req.SessionID, key)
	existing, err := s.idem.Claim(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != "" {
		log.Info("duplicate checkout detected", zap.String("order_id", existing))
		order, err := s.orders.Get(ctx, existing)
		if err != nil {
			return nil, err
		}
		return &Result{Order: order, Replayed: true}, nil
	}

	// Deduction keys are unique per attempt; a retry after compensation deducts again.
	att := attempt{
		key:    key,
		scope:  scope,
		prefix: key + ":" + uuid.NewString()[:8],
		req:    req,
	}
	log = log.With(zap.String("attempt", att.prefix))

	var order *domain.Order
	err = s.carts.Checkout(ctx, req.SessionID, func(ctx context.Context, cart domain.Cart) error {
		placed, rerr := s.reconcile(ctx, log, att, cart)
		order = placed
		return rerr
	})
	if err != nil {
		if relErr := s.idem.Release(context.WithoutCancel(ctx), scope); relErr != nil {
			log.Error("release idempotency key failed", zap.Error(relErr))
		}
		var partial *PartialCheckoutFailure
		if errors.As(err, &partial) {
			s.publish(ctx, log, events.Event{
				Type: events.CheckoutCompensated,
				Key:  key,
				Payload: map[string]any{
					"idempotency_key": key,
					"session_id":      req.SessionID,
					"reason":          partial.Cause.Error(),
					"deductions":      partial.Deductions,
				},
			})
		}
		log.Warn("checkout failed", zap.Error(err))
		return nil, err
	}

	if err := s.idem.Complete(context.WithoutCancel(ctx), scope, order.ID); err != nil {
		log.Error("complete idempotency key failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	s.publish(ctx, log, events.Event{
		Type: events.OrderPlaced,
		Key:  order.ID,
		Payload: map[string]any{
			"order_id":   order.ID,
			"session_id": req.SessionID,
			"items":      order.Items,
			"subtotal":   order.Subtotal,
			"tax":        order.Tax,
			"total":      order.Total,
		},
	})
	log.Info("order placed", zap.String("order_id", order.ID), zap.String("total", order.Total.StringFixed(2)))
	return &Result{Order: order}, nil
}

// attempt is one run of the saga for a claimed key.
type attempt struct {
	key    string // as sent by the client
	scope  string // session-scoped key for the idempotency store and the order
	prefix string // prefix of this attempt's deduction keys
	req    Request
}

func sessionScoped(sessionID, key string) string {
	return sessionID + ":" + key
}

func (s *Service) reconcile(ctx context.Context, log *zap.Logger, att attempt, cart domain.Cart) (*domain.Order, error) {
	deductions := s.deductAll(ctx, att, cart.Items)

	var failed *Deduction
	for i := range deductions {
		if deductions[i].Status != DeductionApplied {
			failed = &deductions[i]
			break
		}
	}
	if failed != nil {
		cause := fmt.Errorf("%w: product %s: %w", ErrStockDeductionFailed, failed.ProductID, failed.err)
		return nil, s.abort(ctx, log, deductions, cause)
	}

	order, err := s.orders.Create(ctx, domain.NewOrderDraft(att.req.Customer, cart, att.scope))
	if err != nil {
		return nil, s.abort(ctx, log, deductions, fmt.Errorf("create order: %w", err))
	}
	return order, nil
}

// deductAll runs every deduction to completion, bounded by Workers. A failure
// does not cancel the others so that every outcome is known.
func (s *Service) deductAll(ctx context.Context, att attempt, items []domain.LineItem) []Deduction {
	deductions := make([]Deduction, len(items))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for i, item := range items {
		deductions[i] = Deduction{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			IdempotencyKey: att.prefix + ":" + item.ProductID,
		}
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(ctx, s.opts.DeductionTimeout)
			defer cancel()

			err := s.inventory.RemoveStock(dctx, domain.StockRequest{
				ProductID:      item.ProductID,
				Quantity:       item.Quantity,
				IdempotencyKey: deductions[i].IdempotencyKey,
				Actor:          inventory.ActorSystem,
				Notes:          "Checkout " + att.key,
			})
			deductions[i].Status = classify(err)
			if err != nil {
				deductions[i].err = err
				deductions[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return deductions
}

// classify maps a deduction error to its outcome. Anything that may have
// reached the inventory without a definitive answer is unknown.
func classify(err error) DeductionStatus {
	switch {
	case err == nil:
		return DeductionApplied
	case gateway.IsNetwork(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return DeductionUnknown
	}
	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) && httpErr.Temporary() {
		return DeductionUnknown
	}
	return DeductionRejected
}

// abort compensates applied deductions and builds the error for the caller.
func (s *Service) abort(ctx context.Context, log *zap.Logger, deductions []Deduction, cause error) error {
	possiblyApplied := 0
	for _, d := range deductions {
		if d.Status == DeductionApplied || d.Status == DeductionUnknown {
			possiblyApplied++
		}
	}
	if possiblyApplied == 0 {
		return cause
	}

	s.compensate(ctx, log, deductions)
	for _, d := range deductions {
		if d.Status == DeductionUnknown || d.Status == DeductionCompensationFailed {
			log.Error("stock needs manual reconciliation",
				zap.String("product_id", d.ProductID),
				zap.Int("quantity", d.Quantity),
				zap.String("deduction_key", d.IdempotencyKey),
				zap.String("status", string(d.Status)))
		}
	}
	return &PartialCheckoutFailure{Cause: cause, Deductions: deductions}
}

// compensate re-adds stock for every applied deduction. It runs detached from
// the caller's cancellation; unknown outcomes are left alone.
func (s *Service) compensate(ctx context.Context, log *zap.Logger, deductions []Deduction) {
	detached := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for i := range deductions {
		if deductions[i].Status != DeductionApplied {
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(detached, s.opts.DeductionTimeout)
			defer cancel()

			d := &deductions[i]
			err := s.inventory.AddStock(cctx, domain.StockRequest{
				ProductID:      d.ProductID,
				Quantity:       d.Quantity,
				IdempotencyKey: d.IdempotencyKey + ":compensate",
				Actor:          inventory.ActorSystem,
				Notes:          "Checkout compensation " + d.IdempotencyKey,
			})
			if err != nil {
				d.Status = DeductionCompensationFailed
				d.Error = err.Error()
				log.Error("compensating stock failed",
					zap.String("product_id", d.ProductID),
					zap.Int("quantity", d.Quantity),
					zap.Error(err))
				return nil
			}
			d.Status = DeductionCompensated
			log.Info("stock compensated",
				zap.String("product_id", d.ProductID),
				zap.Int("quantity", d.Quantity))
			return nil
		})
	}
	_ = g.Wait()
}

// publish runs after the cart lock is released and is bounded by PublishTimeout.
func (s *Service) publish(ctx context.Context, log *zap.Logger, event events.Event) {
	event.OccurredAt = time.Now().UTC()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, event); err != nil {
		log.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
