package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	cart "github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/checkout"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/gateway"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/reconciliation"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/session"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/logger"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buyer = "buyer-1"

type fixture struct {
	repo      *MockOrderRepository
	provider  *MockProvider
	adapter   *gateway.Adapter
	sessions  *MockSessions
	guard     *MemoryGuard
	queue     *reconciliation.MemoryQueue
	metrics   *metrics.ServerMetrics
	lifecycle *Lifecycle
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		repo:     NewMockOrderRepository(),
		provider: &MockProvider{},
		sessions: NewMockSessions(),
		guard:    NewMemoryGuard(),
		queue:    reconciliation.NewMemoryQueue(),
		metrics:  metrics.NewServerMetrics(prometheus.NewRegistry(), "test"),
	}
	f.adapter = gateway.NewAdapter(gateway.StaticLoader{}, f.provider, logger.Discard())

	d := Deps{
		Repo:     f.repo,
		Gateway:  f.adapter,
		Sessions: f.sessions,
		Guard:    f.guard,
		Queue:    f.queue,
		Metrics:  f.metrics,
		Logger:   logger.Discard(),
	}
	for _, o := range opts {
		o(&d)
	}
	f.lifecycle = NewLifecycle(d)
	return f
}

func request(t *testing.T, method string, items ...cart.CartItem) *checkout.OrderRequest {
	t.Helper()
	if len(items) == 0 {
		items = []cart.CartItem{{ID: "1", Title: "Mystic Mountains", Creator: "Aarav Mehta", UnitPrice: 15000, Quantity: 1}}
	}
	req, err := checkout.Build(cart.NewCart(items...), buyer, checkout.BuyerInfo{
		Name:          "Priya Nair",
		Email:         "priya@example.com",
		Phone:         "9876543210",
		Address:       "12 Lake View Road",
		City:          "Kochi",
		State:         "Kerala",
		Pincode:       "682001",
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) guardFree(t *testing.T) bool {
	t.Helper()
	ok, err := f.guard.Acquire(context.Background(), buyer, "probe", time.Minute)
	require.NoError(t, err)
	if ok {
		require.NoError(t, f.guard.Release(context.Background(), buyer, "probe"))
	}
	return ok
}

func sequence(ids ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			return "", errors.New("sequence exhausted")
		}
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
}

func TestPlaceOrder_PayOnDelivery(t *testing.T) {
	f := newFixture(t)
	req := request(t, "pay_on_delivery", cart.CartItem{ID: "2", Title: "Urban Reflections", UnitPrice: 22000, Quantity: 1})

	p, err := f.lifecycle.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, p.Checkout)
	assert.Equal(t, domain.StatusPaid, p.Order.Status)
	assert.Equal(t, int64(22000), p.Order.Amount)
	assert.Equal(t, domain.PaymentOnDelivery, p.Order.PaymentMethod)

	stored := f.repo.Find(p.Order.CorrelationID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusPaid, stored.Status)

	assert.Equal(t, []string{buyer}, f.sessions.Cleared)
	assert.Equal(t, session.KindSuccess, f.sessions.Last(buyer).Kind)
	assert.Empty(t, f.provider.Prepared, "gateway is not opened")
	assert.True(t, f.guardFree(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderTransitions.WithLabelValues("created", "paid")))
}

func TestPlaceOrder_GatewaySuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.lifecycle.PlaceOrder(ctx, request(t, "razorpay"))
	require.NoError(t, err)
	require.NotNil(t, p.Checkout)
	assert.Equal(t, domain.StatusCreated, p.Order.Status)
	assert.Equal(t, int64(1500000), p.Checkout.Amount, "amount is sent in paise")
	assert.Equal(t, p.Order.CorrelationID, p.Checkout.OrderID)
	assert.Equal(t, 1, f.adapter.Pending())
	assert.False(t, f.guardFree(t), "guard is held while the payment is open")
	assert.Empty(t, f.sessions.Cleared)

	err = f.adapter.Resolve(ctx, gateway.Success{CorrelationID: p.Order.CorrelationID, PaymentID: "pay_1", Signature: "sig"})
	require.NoError(t, err)

	stored := f.repo.Find(p.Order.CorrelationID)
	assert.Equal(t, domain.StatusPaid, stored.Status)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "pay_1", *stored.PaymentID)
	assert.Equal(t, "sig", *stored.PaymentSignature)
	assert.Equal(t, []string{buyer}, f.sessions.Cleared)
	assert.Contains(t, f.sessions.Last(buyer).Message, "pay_1")
	assert.True(t, f.guardFree(t))
}

func TestOnGatewaySuccess_DuplicateAppliedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.lifecycle.PlaceOrder(ctx, request(t, "razorpay"))
	require.NoError(t, err)

	success := gateway.Success{CorrelationID: p.Order.CorrelationID, PaymentID: "pay_1", Signature: "sig"}
	require.NoError(t, f.adapter.Resolve(ctx, success))

	err = f.adapter.Resolve(ctx, success)
	var dup *DuplicateCallbackError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, domain.StatusPaid, dup.Status)

	assert.Equal(t, 1, f.repo.Updates)
	assert.Len(t, f.sessions.Cleared, 1)
	assert.Empty(t, f.queue.Entries())
}

func TestOnGatewaySuccess_ConcurrentDeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.lifecycle.PlaceOrder(ctx, request(t, "razorpay"))
	require.NoError(t, err)
	success := gateway.Success{CorrelationID: p.Order.CorrelationID, PaymentID: "pay_1", Signature: "sig"}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.lifecycle.OnGatewaySuccess(ctx, success)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var dup *DuplicateCallbackError
		assert.ErrorAs(t, err, &dup)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.repo.Updates)
}

func TestOnGatewayFailure_KeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.lifecycle.PlaceOrder(ctx, request(t, "razorpay"))
	require.NoError(t, err)

	failure := gateway.Failure{
		CorrelationID: p.Order.CorrelationID,
		PaymentID:     "pay_F1",
		Code:          "BAD_REQUEST_ERROR",
		Description:   "Payment failed due to insufficient funds",
		Source:        "customer",
		Step:          "payment_authentication",
		Reason:        "payment_failed",
	}
	err = f.adapter.Resolve(ctx, failure)

	var payErr *gateway.GatewayPaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, failure, payErr.Failure)

	stored := f.repo.Find(p.Order.CorrelationID)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	require.NotNil(t, stored.Failure)
	assert.Equal(t, domain.FailureDetails{
		Code:        "BAD_REQUEST_ERROR",
		Description: "Payment failed due to insufficient funds",
		Source:      "customer",
		Step:        "payment_authentication",
		Reason:      "payment_failed",
	}, *stored.Failure)
	assert.Equal(t, "pay_F1", *stored.PaymentID)

	assert.Empty(t, f.sessions.Cleared)
	assert.Equal(t, session.KindError, f.sessions.Last(buyer).Kind)
	assert.True(t, f.guardFree(t))

	err = f.adapter.Resolve(ctx, gateway.Success{CorrelationID: p.Order.CorrelationID, PaymentID: "pay_2"})
	var dup *DuplicateCallbackError
	require.ErrorAs(t, err, &dup, "a failed order is terminal")
	assert.Equal(t, domain.StatusFailed, f.repo.Find(p.Order.CorrelationID).Status)
}

func TestPlaceOrder_SecondSubmissionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.PlaceOrder(ctx, request(t, "razorpay"))
	require.NoError(t, err)

	_, err = f.lifecycle.PlaceOrder(ctx, request(t, "razorpay"))
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, 1, f.repo.Inserts)
}

func TestPlaceOrder_ConcurrentSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request(t, "razorpay")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.lifecycle.PlaceOrder(ctx, req)
		}(i)
	}
	wg.Wait()

	var placed int
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		assert.ErrorIs(t, err, ErrSubmissionInFlight)
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, f.repo.Inserts)
	assert.Equal(t, 1, f.adapter.Pending())
}

func TestPlaceOrder_GatewayLoadFailure(t *testing.T) {
	f := newFixture(t)
	f.adapter = gateway.NewAdapter(gateway.StaticLoader{Err: errors.New("script blocked")}, f.provider, logger.Discard())
	f.lifecycle = NewLifecycle(Deps{
		Repo: f.repo, Gateway: f.adapter, Sessions: f.sessions, Guard: f.guard,
		Queue: f.queue, Logger: logger.Discard(),
	})

	p, err := f.lifecycle.PlaceOrder(context.Background(), request(t, "razorpay"))
	assert.Nil(t, p)
	var loadErr *gateway.GatewayLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "mock", loadErr.Provider)

	require.Len(t, f.repo.Orders, 1)
	for _, o := range f.repo.Orders {
		assert.Equal(t, domain.StatusFailed, o.Status)
		require.NotNil(t, o.Failure)
		assert.Equal(t, "GATEWAY_LOAD_ERROR", o.Failure.Code)
	}
	assert.Zero(t, f.adapter.Pending())
	assert.Empty(t, f.sessions.Cleared)
	assert.Equal(t, session.KindError, f.sessions.Last(buyer).Kind)
	assert.True(t, f.guardFree(t), "buyer can retry")
}

func TestPlaceOrder_PrepareFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.Err = errors.New("order api 503")

	_, err := f.lifecycle.PlaceOrder(context.Background(), request(t, "razorpay"))
	var loadErr *gateway.GatewayLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Zero(t, f.adapter.Pending())
	assert.True(t, f.guardFree(t))
}

func TestPlaceOrder_InsertFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.InsertErr = errDBDown

	_, err := f.lifecycle.PlaceOrder(context.Background(), request(t, "razorpay"))
	assert.ErrorIs(t, err, errDBDown)
	assert.Empty(t, f.provider.Prepared)
	assert.True(t, f.guardFree(t))
}

func TestPlaceOrder_CorrelationCollisionRegenerates(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.NewCorrelationID = sequence("ORDDUP", "ORDNEW") })
	f.repo.InsertErrs = []error{repository.ErrDuplicateCorrelation}

	p, err := f.lifecycle.PlaceOrder(context.Background(), request(t, "razorpay"))
	require.NoError(t, err)
	assert.Equal(t, "ORDNEW", p.Order.CorrelationID)
	assert.Equal(t, "ORDNEW", p.Checkout.OrderID)

	require.NoError(t, f.guard.Release(context.Background(), buyer, "ORDNEW"))
	assert.True(t, f.guardFree(t), "guard is held under the regenerated id")
}

func TestOnGatewaySuccess_PersistFailureQueuesReconciliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.lifecycle.PlaceOrder(ctx, request(t, "razorpay"))
	require.NoError(t, err)

	f.repo.UpdateErr = errDBDown
	err = f.adapter.Resolve(ctx, gateway.Success{CorrelationID: p.Order.CorrelationID, PaymentID: "pay_9", Signature: "sig"})

	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "pay_9", recErr.PaymentID)
	assert.ErrorIs(t, err, errDBDown)

	entries := f.queue.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, p.Order.CorrelationID, entries[0].CorrelationID)
	assert.Equal(t, p.Order.ID.String(), entries[0].OrderID)
	assert.Equal(t, buyer, entries[0].BuyerID)
	assert.Equal(t, int64(15000), entries[0].Amount)
	assert.Equal(t, "pay_9", entries[0].PaymentID)

	assert.Equal(t, session.KindWarning, f.sessions.Last(buyer).Kind)
	assert.Empty(t, f.sessions.Cleared)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reconciliations))
}

func TestOnGatewaySuccess_UnknownOrderQueuesReconciliation(t *testing.T) {
	f := newFixture(t)

	err := f.adapter.Resolve(context.Background(), gateway.Success{CorrelationID: "ORDMISSING", PaymentID: "pay_X"})
	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	entries := f.queue.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ORDMISSING", entries[0].CorrelationID)
	assert.Empty(t, entries[0].BuyerID)
}

func TestOnGatewayFailure_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	err := f.adapter.Resolve(context.Background(), gateway.Failure{CorrelationID: "ORDMISSING", Code: "X"})
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	assert.Empty(t, f.queue.Entries(), "failures carry no captured money")
}

func TestMarkStale_ReleasesBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.lifecycle.PlaceOrder(ctx, request(t, "razorpay"))
	require.NoError(t, err)

	n, err := f.lifecycle.MarkStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh orders are left alone")

	f.repo.backdate(20 * time.Minute)
	n, err = f.lifecycle.MarkStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Zero(t, f.adapter.Pending())
	assert.True(t, f.guardFree(t))
	assert.Equal(t, session.KindWarning, f.sessions.Last(buyer).Kind)

	stored := f.repo.Find(p.Order.CorrelationID)
	assert.Equal(t, domain.StatusCreated, stored.Status)
	assert.NotNil(t, stored.StaleAt)

	n, err = f.lifecycle.MarkStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n, "already flagged")

	// a late callback still lands through the unmatched route
	require.NoError(t, f.adapter.Resolve(ctx, gateway.Success{CorrelationID: p.Order.CorrelationID, PaymentID: "pay_late"}))
	assert.Equal(t, domain.StatusPaid, f.repo.Find(p.Order.CorrelationID).Status)
}

func TestNewCorrelationID(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD[0-9A-F]{32}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := NewCorrelationID()
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], fmt.Sprintf("duplicate id %s", id))
		seen[id] = true
	}
}
