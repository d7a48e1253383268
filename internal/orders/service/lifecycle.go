package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/checkout"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/gateway"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/reconciliation"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/session"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/metrics"
	"github.com/google/uuid"
)

// subunits per rupee
const paisePerRupee = 100

type PaymentGateway interface {
	Open(ctx context.Context, spec gateway.PaymentSpec, onSuccess gateway.SuccessFunc, onFailure gateway.FailureFunc) (*gateway.Checkout, error)
	Forget(correlationID string) bool
	OnUnmatched(fn gateway.UnmatchedFunc)
}

// Sessions is the part of the session manager the lifecycle drives.
type Sessions interface {
	ClearCart(ctx context.Context, buyerID string) error
	Notify(buyerID string, n session.Notification)
}

type Deps struct {
	Repo     repository.OrderRepository
	Gateway  PaymentGateway
	Sessions Sessions
	Guard    SubmissionGuard
	Queue    reconciliation.Queue
	Metrics  *metrics.ServerMetrics
	Logger   *slog.Logger
	// GuardTTL bounds how long a submission may hold the guard. It should
	// exceed the stale-order interval.
	GuardTTL time.Duration
	// NewCorrelationID overrides id generation in tests.
	NewCorrelationID func() (string, error)
}

type Placement struct {
	Order *domain.Order `json:"order"`
	// Checkout is nil for pay-on-delivery orders.
	Checkout *gateway.Checkout `json:"checkout,omitempty"`
}

// Lifecycle is the only writer of orders. It creates them, correlates gateway
// outcomes to them and drives their status.
type Lifecycle struct {
	repo     repository.OrderRepository
	gateway  PaymentGateway
	sessions Sessions
	guard    SubmissionGuard
	queue    reconciliation.Queue
	metrics  *metrics.ServerMetrics
	logger   *slog.Logger
	guardTTL time.Duration
	newID    func() (string, error)
}

func NewLifecycle(d Deps) *Lifecycle {
	l := &Lifecycle{
		repo:     d.Repo,
		gateway:  d.Gateway,
		sessions: d.Sessions,
		guard:    d.Guard,
		queue:    d.Queue,
		metrics:  d.Metrics,
		logger:   d.Logger,
		guardTTL: d.GuardTTL,
		newID:    d.NewCorrelationID,
	}
	if l.guardTTL <= 0 {
		l.guardTTL = 20 * time.Minute
	}
	if l.newID == nil {
		l.newID = NewCorrelationID
	}
	d.Gateway.OnUnmatched(l.dispatch)
	return l
}

// NewCorrelationID returns "ORD" followed by 128 random bits in hex.
func NewCorrelationID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate correlation id: %w", err)
	}
	return "ORD" + strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")), nil
}

func (l *Lifecycle) PlaceOrder(ctx context.Context, req *checkout.OrderRequest) (*Placement, error) {
	buyerID := req.BuyerID()

	cid, err := l.newID()
	if err != nil {
		return nil, err
	}

	ok, err := l.guard.Acquire(ctx, buyerID, cid, l.guardTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubmissionInFlight
	}

	order := newOrder(req, cid)
	err = l.repo.InsertOrder(ctx, order)
	if errors.Is(err, repository.ErrDuplicateCorrelation) {
		l.logger.WarnContext(ctx, "correlation id collision, regenerating", "correlation_id", cid)
		order, err = l.retryInsert(ctx, req, cid)
	}
	if err != nil {
		l.release(ctx, buyerID, order.CorrelationID)
		if errors.Is(err, ErrSubmissionInFlight) {
			return nil, err
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	l.logger.InfoContext(ctx, "order created",
		"correlation_id", order.CorrelationID,
		"buyer_id", buyerID,
		"amount", order.Amount,
		"payment_method", order.PaymentMethod)

	if order.PaymentMethod == domain.PaymentOnDelivery {
		return l.confirmOnDelivery(ctx, order)
	}

	spec := gateway.PaymentSpec{
		Amount:        order.Amount * paisePerRupee,
		Currency:      order.Currency,
		CorrelationID: order.CorrelationID,
		Description:   describe(order.Items),
		Prefill: gateway.Prefill{
			Name:    order.Contact.Name,
			Email:   order.Contact.Email,
			Contact: order.Contact.Phone,
		},
	}

	co, err := l.gateway.Open(ctx, spec, l.OnGatewaySuccess, l.OnGatewayFailure)
	if err != nil {
		l.abortOpen(ctx, order, err)
		return nil, err
	}

	return &Placement{Order: order, Checkout: co}, nil
}

// retryInsert rebinds the guard to a fresh correlation id and inserts once more.
func (l *Lifecycle) retryInsert(ctx context.Context, req *checkout.OrderRequest, oldID string) (*domain.Order, error) {
	buyerID := req.BuyerID()
	l.release(ctx, buyerID, oldID)

	cid, err := l.newID()
	if err != nil {
		return &domain.Order{CorrelationID: oldID}, err
	}
	ok, err := l.guard.Acquire(ctx, buyerID, cid, l.guardTTL)
	if err != nil {
		return &domain.Order{CorrelationID: oldID}, err
	}
	if !ok {
		return &domain.Order{CorrelationID: oldID}, ErrSubmissionInFlight
	}

	order := newOrder(req, cid)
	return order, l.repo.InsertOrder(ctx, order)
}

func newOrder(req *checkout.OrderRequest, cid string) *domain.Order {
	return &domain.Order{
		ID:            uuid.New(),
		CorrelationID: cid,
		BuyerID:       req.BuyerID(),
		Amount:        req.TotalAmount(),
		Currency:      domain.CurrencyINR,
		Contact:       req.Contact(),
		Shipping:      req.Shipping(),
		PaymentMethod: req.PaymentMethod(),
		Items:         req.Items(),
		Status:        domain.StatusCreated,
	}
}

func (l *Lifecycle) confirmOnDelivery(ctx context.Context, order *domain.Order) (*Placement, error) {
	defer l.release(ctx, order.BuyerID, order.CorrelationID)

	updated, err := l.apply(ctx, order, domain.EventConfirmOnDelivery, repository.Patch{})
	if err != nil {
		return nil, fmt.Errorf("confirm pay on delivery: %w", err)
	}

	l.clearCart(ctx, updated)
	l.sessions.Notify(updated.BuyerID, session.Notification{
		Kind:          session.KindSuccess,
		Title:         "Order placed successfully",
		Message:       "Your order has been placed. You will pay on delivery.",
		CorrelationID: updated.CorrelationID,
	})
	return &Placement{Order: updated}, nil
}

// abortOpen records an Open failure on the order. The buyer may retry or choose pay on delivery.
func (l *Lifecycle) abortOpen(ctx context.Context, order *domain.Order, cause error) {
	defer l.release(ctx, order.BuyerID, order.CorrelationID)

	details := &domain.FailureDetails{
		Code:        "GATEWAY_OPEN_ERROR",
		Description: cause.Error(),
		Source:      "server",
		Step:        "payment_initiation",
		Reason:      "gateway_open_failed",
	}
	var loadErr *gateway.GatewayLoadError
	if errors.As(cause, &loadErr) {
		details.Code = "GATEWAY_LOAD_ERROR"
		details.Reason = "gateway_unavailable"
	}

	if _, err := l.apply(ctx, order, domain.EventGatewayFailure, repository.Patch{Failure: details}); err != nil {
		l.logger.ErrorContext(ctx, "failed to record gateway open failure",
			"correlation_id", order.CorrelationID, "err", err)
	}

	l.logger.WarnContext(ctx, "payment gateway unavailable",
		"correlation_id", order.CorrelationID, "err", cause)
	l.sessions.Notify(order.BuyerID, session.Notification{
		Kind:          session.KindError,
		Title:         "Payment gateway unavailable",
		Message:       "We could not reach the payment gateway. Please try again or choose pay on delivery.",
		CorrelationID: order.CorrelationID,
	})
}

// OnGatewaySuccess marks the matching created order paid.
func (l *Lifecycle) OnGatewaySuccess(ctx context.Context, s gateway.Success) error {
	order, err := l.repo.FindByCorrelationID(ctx, s.CorrelationID)
	if err != nil {
		return l.reconcile(ctx, s, order, err)
	}
	if order.Status != domain.StatusCreated {
		return l.duplicate(ctx, order.CorrelationID, order.Status)
	}

	updated, err := l.apply(ctx, order, domain.EventGatewaySuccess, repository.Patch{
		PaymentID:        &s.PaymentID,
		PaymentSignature: &s.Signature,
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return l.duplicate(ctx, order.CorrelationID, "")
	}
	if err != nil {
		return l.reconcile(ctx, s, order, err)
	}

	l.logger.InfoContext(ctx, "payment captured",
		"correlation_id", updated.CorrelationID,
		"buyer_id", updated.BuyerID,
		"payment_id", s.PaymentID)

	l.clearCart(ctx, updated)
	l.sessions.Notify(updated.BuyerID, session.Notification{
		Kind:          session.KindSuccess,
		Title:         "Payment successful",
		Message:       fmt.Sprintf("Your order has been placed. Payment ID: %s", s.PaymentID),
		CorrelationID: updated.CorrelationID,
	})
	l.release(ctx, updated.BuyerID, updated.CorrelationID)
	return nil
}

// OnGatewayFailure marks the matching created order failed. The cart is kept for a retry.
func (l *Lifecycle) OnGatewayFailure(ctx context.Context, f gateway.Failure) error {
	order, err := l.repo.FindByCorrelationID(ctx, f.CorrelationID)
	if err != nil {
		return fmt.Errorf("find order %s: %w", f.CorrelationID, err)
	}
	if order.Status != domain.StatusCreated {
		return l.duplicate(ctx, order.CorrelationID, order.Status)
	}

	updated, err := l.apply(ctx, order, domain.EventGatewayFailure, repository.Patch{
		PaymentID: nonEmpty(f.PaymentID),
		Failure: &domain.FailureDetails{
			Code:        f.Code,
			Description: f.Description,
			Source:      f.Source,
			Step:        f.Step,
			Reason:      f.Reason,
		},
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return l.duplicate(ctx, order.CorrelationID, "")
	}
	if err != nil {
		return fmt.Errorf("record payment failure %s: %w", f.CorrelationID, err)
	}

	l.logger.InfoContext(ctx, "payment failed",
		"correlation_id", updated.CorrelationID,
		"buyer_id", updated.BuyerID,
		"code", f.Code,
		"reason", f.Reason)

	l.sessions.Notify(updated.BuyerID, session.Notification{
		Kind:          session.KindError,
		Title:         "Payment failed",
		Message:       f.Description,
		CorrelationID: updated.CorrelationID,
	})
	l.release(ctx, updated.BuyerID, updated.CorrelationID)
	return &gateway.GatewayPaymentError{Failure: f}
}

// MarkStale flags created orders older than olderThan as unresolved, frees
// their buyers to retry and tells them so. Stale orders stay created, so a
// late genuine callback is still applied.
func (l *Lifecycle) MarkStale(ctx context.Context, olderThan time.Duration) (int, error) {
	orders, err := l.repo.MarkStale(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("mark stale orders: %w", err)
	}

	for _, order := range orders {
		l.gateway.Forget(order.CorrelationID)
		l.release(ctx, order.BuyerID, order.CorrelationID)
		l.sessions.Notify(order.BuyerID, session.Notification{
			Kind:          session.KindWarning,
			Title:         "Payment unresolved",
			Message:       "We did not hear back from the payment gateway. You can retry checkout.",
			CorrelationID: order.CorrelationID,
		})
		l.logger.WarnContext(ctx, "order marked stale",
			"correlation_id", order.CorrelationID,
			"buyer_id", order.BuyerID,
			"created_at", order.CreatedAt)
	}
	return len(orders), nil
}

// dispatch handles outcomes the adapter has no pending attempt for.
func (l *Lifecycle) dispatch(ctx context.Context, o gateway.Outcome) error {
	switch v := o.(type) {
	case gateway.Success:
		return l.OnGatewaySuccess(ctx, v)
	case gateway.Failure:
		return l.OnGatewayFailure(ctx, v)
	default:
		return fmt.Errorf("unsupported outcome %T", o)
	}
}

func (l *Lifecycle) apply(ctx context.Context, order *domain.Order, ev domain.Event, patch repository.Patch) (*domain.Order, error) {
	to, err := domain.Transition(order.Status, ev)
	if err != nil {
		return nil, err
	}
	patch.ExpectStatus = order.Status
	patch.Status = to

	updated, err := l.repo.UpdateOrder(ctx, order.ID, patch)
	if err != nil {
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.OrderTransitions.WithLabelValues(string(order.Status), string(to)).Inc()
	}
	return updated, nil
}

func (l *Lifecycle) duplicate(ctx context.Context, cid string, status domain.Status) error {
	l.logger.WarnContext(ctx, "duplicate gateway callback ignored",
		"correlation_id", cid, "status", status)
	return &DuplicateCallbackError{CorrelationID: cid, Status: status}
}

// reconcile queues a captured payment whose order could not be updated.
// order may be nil when the lookup itself failed.
func (l *Lifecycle) reconcile(ctx context.Context, s gateway.Success, order *domain.Order, cause error) error {
	entry := reconciliation.Entry{
		CorrelationID: s.CorrelationID,
		PaymentID:     s.PaymentID,
		Signature:     s.Signature,
		Cause:         cause.Error(),
		OccurredAt:    time.Now().UTC(),
	}
	if order != nil {
		entry.OrderID = order.ID.String()
		entry.BuyerID = order.BuyerID
		entry.Amount = order.Amount
		entry.Currency = order.Currency
	}

	if l.metrics != nil {
		l.metrics.Reconciliations.Inc()
	}
	l.logger.ErrorContext(ctx, "payment captured but order not updated",
		"correlation_id", s.CorrelationID,
		"payment_id", s.PaymentID,
		"err", cause)

	if err := l.queue.Enqueue(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "failed to enqueue reconciliation entry",
			"correlation_id", entry.CorrelationID,
			"payment_id", entry.PaymentID,
			"order_id", entry.OrderID,
			"amount", entry.Amount,
			"cause", entry.Cause,
			"err", err)
	}

	if entry.BuyerID != "" {
		l.sessions.Notify(entry.BuyerID, session.Notification{
			Kind:          session.KindWarning,
			Title:         "Payment received, confirmation pending",
			Message:       fmt.Sprintf("We received your payment %s but could not confirm your order yet. Our team will reach out.", s.PaymentID),
			CorrelationID: s.CorrelationID,
		})
	}

	return &ReconciliationError{CorrelationID: s.CorrelationID, PaymentID: s.PaymentID, Cause: cause}
}

func (l *Lifecycle) clearCart(ctx context.Context, order *domain.Order) {
	if err := l.sessions.ClearCart(ctx, order.BuyerID); err != nil {
		l.logger.ErrorContext(ctx, "failed to clear cart after payment",
			"correlation_id", order.CorrelationID, "buyer_id", order.BuyerID, "err", err)
	}
}

func (l *Lifecycle) release(ctx context.Context, buyerID, cid string) {
	if err := l.guard.Release(ctx, buyerID, cid); err != nil {
		l.logger.WarnContext(ctx, "failed to release submission guard",
			"buyer_id", buyerID, "correlation_id", cid, "err", err)
	}
}

func describe(items []domain.OrderItem) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0].Title
	default:
		return fmt.Sprintf("%s and %d more", items[0].Title, len(items)-1)
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
