package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/gateway"
	"github.com/fjod/storefront/internal/inventory"
	"github.com/fjod/storefront/internal/orders"
)

type fixture struct {
	svc       *Service
	carts     *cart.Service
	catalog   *catalog.MemoryCatalog
	inventory *MockInventory
	orders    *MockOrders
	idem      *MemoryIdempotency
	publisher *MockPublisher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.NewMemoryCatalog(catalog.Fixtures(), 0)
	store := inventory.NewMemoryStore(cat)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		carts:     cart.NewService(cart.NewMemoryStore(0), cat, zap.NewNop()),
		catalog:   cat,
		inventory: &MockInventory{Inventory: store, FailRemove: map[string]error{}, FailAdd: map[string]error{}},
		orders:    &MockOrders{Repository: orders.NewMemoryRepository(0)},
		idem:      NewMemoryIdempotency(time.Hour),
		publisher: &MockPublisher{},
	}
	f.svc = NewService(f.carts, f.inventory, f.orders, f.idem, f.publisher, zap.NewNop(),
		Options{DeductionTimeout: time.Second, Workers: 2})
	return f
}

func (f *fixture) fill(t *testing.T, sessionID string, lines map[string]int) {
	t.Helper()
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"} {
		if qty, ok := lines[id]; ok {
			_, err := f.carts.AddToCart(context.Background(), sessionID, id, qty, cart.AddOptions{})
			require.NoError(t, err)
		}
	}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func customer() domain.CustomerInfo {
	return domain.CustomerInfo{
		Name: "Jane Doe", Email: "jane@example.com", Address: "1 Main St",
		City: "Springfield", ZipCode: "12345", CardNumber: "4111111111111111",
	}
}

func TestPlaceOrder_EmptyCartMakesNoCalls(t *testing.T) {
	f := setup(t)

	_, err := f.svc.PlaceOrder(context.Background(), Request{SessionID: "s", Customer: customer(), IdempotencyKey: "k"})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	removes, adds := f.inventory.calls()
	assert.Empty(t, removes)
	assert.Empty(t, adds)
	assert.Zero(t, f.orders.CreateCalls)

	// the key was released, so it can be used once the cart has items
	f.fill(t, "s", map[string]int{"1": 1})
	_, err = f.svc.PlaceOrder(context.Background(), Request{SessionID: "s", Customer: customer(), IdempotencyKey: "k"})
	require.NoError(t, err)
}

func TestPlaceOrder_InvalidCustomer(t *testing.T) {
	f := setup(t)
	f.fill(t, "s", map[string]int{"1": 1})

	c := customer()
	c.Email = "   "
	_, err := f.svc.PlaceOrder(context.Background(), Request{SessionID: "s", Customer: c})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	removes, _ := f.inventory.calls()
	assert.Empty(t, removes)

	cur, err := f.carts.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, cur.Items, 1)
}

func TestPlaceOrder_Success(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fill(t, "s", map[string]int{"1": 2, "5": 1})

	res, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "chk-1"})
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	assert.Equal(t, "ORD-001", res.Order.ID)
	assert.Equal(t, domain.OrderStatusPending, res.Order.Status)
	assert.Equal(t, "307.00", res.Order.Subtotal.StringFixed(2))
	assert.Equal(t, "30.70", res.Order.Tax.StringFixed(2))
	assert.Equal(t, "337.70", res.Order.Total.StringFixed(2))

	assert.Equal(t, 43, f.stock(t, "1"))
	assert.Equal(t, 30, f.stock(t, "5"))

	removes, adds := f.inventory.calls()
	require.Len(t, removes, 2)
	prefixes := map[string]bool{}
	for _, r := range removes {
		assert.True(t, strings.HasPrefix(r.IdempotencyKey, "chk-1:"), r.IdempotencyKey)
		assert.True(t, strings.HasSuffix(r.IdempotencyKey, ":"+r.ProductID), r.IdempotencyKey)
		prefixes[strings.TrimSuffix(r.IdempotencyKey, ":"+r.ProductID)] = true
	}
	assert.Len(t, prefixes, 1, "one attempt shares one key prefix")
	assert.Empty(t, adds)

	cur, err := f.carts.Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, cur.IsEmpty())

	assert.Equal(t, []events.Type{events.OrderPlaced}, f.publisher.types())
}

func TestPlaceOrder_ReplayReturnsSameOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fill(t, "s", map[string]int{"1": 2})

	first, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "chk-r"})
	require.NoError(t, err)

	f.fill(t, "s", map[string]int{"1": 1})
	again, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "chk-r"})
	require.NoError(t, err)

	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
	assert.Equal(t, 43, f.stock(t, "1"))
	assert.Equal(t, 1, f.orders.CreateCalls)

	cur, err := f.carts.Get(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, cur.Items, 1)
}

func TestPlaceOrder_KeyInProgress(t *testing.T) {
	f := setup(t)
	f.fill(t, "s", map[string]int{"1": 1})
	_, err := f.idem.Claim(context.Background(), sessionScoped("s", "busy"))
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(context.Background(), Request{SessionID: "s", Customer: customer(), IdempotencyKey: "busy"})
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	removes, _ := f.inventory.calls()
	assert.Empty(t, removes)
}

// Item A deducts, item B is refused: no order, A's stock is put back.
func TestPlaceOrder_PartialDeductionIsCompensated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	// product 6 has 5 units
	f.fill(t, "s", map[string]int{"1": 2, "6": 6})

	_, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "chk-2"})

	var partial *PartialCheckoutFailure
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, ErrStockDeductionFailed)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	statuses := map[string]DeductionStatus{}
	for _, d := range partial.Deductions {
		statuses[d.ProductID] = d.Status
	}
	assert.Equal(t, DeductionCompensated, statuses["1"])
	assert.Equal(t, DeductionRejected, statuses["6"])
	assert.Empty(t, partial.Unreconciled())

	assert.Equal(t, 45, f.stock(t, "1"), "deduction for product 1 must be reverted")
	assert.Equal(t, 5, f.stock(t, "6"))
	assert.Zero(t, f.orders.CreateCalls)

	removes, adds := f.inventory.calls()
	require.Len(t, adds, 1)
	var deducted string
	for _, r := range removes {
		if r.ProductID == "1" {
			deducted = r.IdempotencyKey
		}
	}
	assert.Equal(t, deducted+":compensate", adds[0].IdempotencyKey)

	cur, err := f.carts.Get(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, cur.Items, 2)

	assert.Equal(t, []events.Type{events.CheckoutCompensated}, f.publisher.types())
}

func TestPlaceOrder_AllRejectedIsNotPartial(t *testing.T) {
	f := setup(t)
	f.fill(t, "s", map[string]int{"6": 6})

	_, err := f.svc.PlaceOrder(context.Background(), Request{SessionID: "s", Customer: customer()})

	require.ErrorIs(t, err, ErrStockDeductionFailed)
	var partial *PartialCheckoutFailure
	assert.False(t, errors.As(err, &partial))
	var stockErr *domain.StockExceededError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
	assert.Empty(t, f.publisher.types())
}

func TestPlaceOrder_UnknownOutcomeIsNotCompensated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fill(t, "s", map[string]int{"1": 2, "5": 1})
	f.inventory.FailRemove["5"] = &gateway.NetworkError{Op: "POST /stock/5/remove", Err: context.DeadlineExceeded}

	_, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "chk-3"})

	var partial *PartialCheckoutFailure
	require.ErrorAs(t, err, &partial)
	statuses := map[string]DeductionStatus{}
	for _, d := range partial.Deductions {
		statuses[d.ProductID] = d.Status
	}
	assert.Equal(t, DeductionCompensated, statuses["1"])
	assert.Equal(t, DeductionUnknown, statuses["5"])

	unreconciled := partial.Unreconciled()
	require.Len(t, unreconciled, 1)
	assert.Equal(t, "5", unreconciled[0].ProductID)

	_, adds := f.inventory.calls()
	for _, a := range adds {
		assert.NotEqual(t, "5", a.ProductID)
	}
	assert.Equal(t, 45, f.stock(t, "1"))
}

func TestPlaceOrder_UnknownOnlyIsPartial(t *testing.T) {
	f := setup(t)
	f.fill(t, "s", map[string]int{"5": 1})
	f.inventory.FailRemove["5"] = &gateway.HTTPError{Method: "POST", Path: "/stock/5/remove", Status: 502, Message: "Bad Gateway"}

	_, err := f.svc.PlaceOrder(context.Background(), Request{SessionID: "s", Customer: customer()})

	var partial *PartialCheckoutFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, DeductionUnknown, partial.Deductions[0].Status)
	_, adds := f.inventory.calls()
	assert.Empty(t, adds)
}

func TestPlaceOrder_OrderCreateFailureCompensatesEverything(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fill(t, "s", map[string]int{"1": 2, "5": 1})
	f.orders.CreateErr = &gateway.HTTPError{Method: "POST", Path: "/orders", Status: 422, Message: "invalid order"}

	_, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "chk-4"})

	var partial *PartialCheckoutFailure
	require.ErrorAs(t, err, &partial)
	assert.NotErrorIs(t, err, ErrStockDeductionFailed)
	assert.Equal(t, 422, gateway.StatusOf(err))
	for _, d := range partial.Deductions {
		assert.Equal(t, DeductionCompensated, d.Status, d.ProductID)
	}
	assert.Equal(t, 45, f.stock(t, "1"))
	assert.Equal(t, 31, f.stock(t, "5"))

	cur, err := f.carts.Get(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, cur.Items, 2)
}

func TestPlaceOrder_CompensationFailureIsReported(t *testing.T) {
	f := setup(t)
	f.fill(t, "s", map[string]int{"1": 2, "6": 6})
	f.inventory.FailAdd["1"] = &gateway.NetworkError{Op: "POST /stock/1/add", Err: errors.New("connection refused")}

	_, err := f.svc.PlaceOrder(context.Background(), Request{SessionID: "s", Customer: customer()})

	var partial *PartialCheckoutFailure
	require.ErrorAs(t, err, &partial)
	unreconciled := partial.Unreconciled()
	require.Len(t, unreconciled, 1)
	assert.Equal(t, "1", unreconciled[0].ProductID)
	assert.Equal(t, DeductionCompensationFailed, unreconciled[0].Status)
	assert.Equal(t, 43, f.stock(t, "1"))
}

func TestPlaceOrder_PublishFailureDoesNotFailCheckout(t *testing.T) {
	f := setup(t)
	f.fill(t, "s", map[string]int{"9": 1})
	f.publisher.Err = errors.New("broker down")

	res, err := f.svc.PlaceOrder(context.Background(), Request{SessionID: "s", Customer: customer()})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Order.ID)
}

// A retry with the same key after a compensated attempt must deduct again.
func TestPlaceOrder_RetryAfterCompensationDeductsAgain(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fill(t, "s", map[string]int{"1": 1, "6": 6})

	_, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "K"})
	var partial *PartialCheckoutFailure
	require.ErrorAs(t, err, &partial)
	require.Equal(t, 45, f.stock(t, "1"))

	_, err = f.catalog.AdjustStock(ctx, "6", 5)
	require.NoError(t, err)

	res, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "K"})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Len(t, res.Order.Items, 2)

	assert.Equal(t, 44, f.stock(t, "1"))
	assert.Equal(t, 4, f.stock(t, "6"))

	removes, _ := f.inventory.calls()
	keys := map[string]bool{}
	for _, r := range removes {
		if r.ProductID == "1" {
			keys[r.IdempotencyKey] = true
		}
	}
	assert.Len(t, keys, 2, "each attempt deducts under its own key")
}

func TestPlaceOrder_KeyIsScopedToSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fill(t, "alice", map[string]int{"1": 1})
	f.fill(t, "bob", map[string]int{"2": 1})

	first, err := f.svc.PlaceOrder(ctx, Request{SessionID: "alice", Customer: customer(), IdempotencyKey: "K"})
	require.NoError(t, err)

	bob := customer()
	bob.Name = "Bob Roe"
	bob.Email = "bob@example.com"
	second, err := f.svc.PlaceOrder(ctx, Request{SessionID: "bob", Customer: bob, IdempotencyKey: "K"})
	require.NoError(t, err)

	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, "Bob Roe", second.Order.CustomerName)
	require.Len(t, second.Order.Items, 1)
	assert.Equal(t, "2", second.Order.Items[0].ProductID)

	cur, err := f.carts.Get(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, cur.IsEmpty())
}

// A hung broker must neither stall the response for long nor hold the cart.
func TestPlaceOrder_HungPublisherIsBoundedAndOutsideCartLock(t *testing.T) {
	f := setup(t)
	f.svc = NewService(f.carts, f.inventory, f.orders, f.idem, f.publisher, zap.NewNop(),
		Options{DeductionTimeout: time.Second, Workers: 2, PublishTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	var lockErrs []error
	f.publisher.Hang = true
	f.publisher.OnPublish = func() {
		lctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err := f.carts.Get(lctx, "s")
		lockErrs = append(lockErrs, err)
	}

	f.fill(t, "s", map[string]int{"1": 2, "6": 6})
	start := time.Now()
	_, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "slow-1"})
	var partial *PartialCheckoutFailure
	require.ErrorAs(t, err, &partial)

	_, err = f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "slow-1"})
	require.ErrorAs(t, err, &partial)
	_, err = f.carts.Remove(ctx, "s", "6")
	require.NoError(t, err)

	res, err := f.svc.PlaceOrder(ctx, Request{SessionID: "s", Customer: customer(), IdempotencyKey: "slow-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Order.ID)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, []events.Type{events.CheckoutCompensated, events.CheckoutCompensated, events.OrderPlaced}, f.publisher.types())
	require.Len(t, lockErrs, 3)
	for _, err := range lockErrs {
		assert.NoError(t, err, "cart lock must be free while publishing")
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, DeductionApplied, classify(nil))
	assert.Equal(t, DeductionUnknown, classify(context.DeadlineExceeded))
	assert.Equal(t, DeductionUnknown, classify(&gateway.NetworkError{Op: "x", Err: errors.New("reset")}))
	assert.Equal(t, DeductionUnknown, classify(&gateway.HTTPError{Status: 503}))
	assert.Equal(t, DeductionRejected, classify(&gateway.HTTPError{Status: 422}))
	assert.Equal(t, DeductionRejected, classify(&domain.StockExceededError{ProductID: "1"}))
}
