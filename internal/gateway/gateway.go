package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
)

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// PaymentSpec describes one payment attempt. Amount is in currency subunits.
type PaymentSpec struct {
	Amount        int64
	Currency      string
	CorrelationID string
	Description   string
	Prefill       Prefill
}

type Theme struct {
	Color string `json:"color"`
}

// Checkout is what the browser needs to present the gateway's checkout surface.
type Checkout struct {
	Provider    string  `json:"provider"`
	ScriptURL   string  `json:"script_url,omitempty"`
	Key         string  `json:"key,omitempty"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
	Theme       *Theme  `json:"theme,omitempty"`
	CallbackURL string  `json:"callback_url,omitempty"`
	Token       string  `json:"token,omitempty"`
	RedirectURL string  `json:"redirect_url,omitempty"`
}

// Outcome is the resolution of a payment attempt: Success or Failure.
type Outcome interface {
	Correlation() string
	outcome()
}

type Success struct {
	CorrelationID string
	PaymentID     string
	Signature     string
}

type Failure struct {
	CorrelationID string
	PaymentID     string
	Code          string
	Description   string
	Source        string
	Step          string
	Reason        string
}

func (s Success) Correlation() string { return s.CorrelationID }
func (Success) outcome()              {}
func (f Failure) Correlation() string { return f.CorrelationID }
func (Failure) outcome()              {}

// Loader makes the gateway client available. Implementations must be idempotent.
type Loader interface {
	Load(ctx context.Context) error
}

type Provider interface {
	Name() string
	Prepare(ctx context.Context, spec PaymentSpec) (*Checkout, error)
}

type (
	SuccessFunc   func(context.Context, Success) error
	FailureFunc   func(context.Context, Failure) error
	UnmatchedFunc func(context.Context, Outcome) error
)

type attempt struct {
	onSuccess SuccessFunc
	onFailure FailureFunc
	openedAt  time.Time
}

// Adapter bridges the asynchronous gateway flow. It keeps the pending attempts
// of this process and fires exactly one callback per resolved attempt.
type Adapter struct {
	loader   Loader
	provider Provider
	breaker  *gobreaker.CircuitBreaker[*Checkout]
	logger   *slog.Logger

	mu        sync.Mutex
	pending   map[string]*attempt
	unmatched UnmatchedFunc
}

func NewAdapter(loader Loader, provider Provider, logger *slog.Logger) *Adapter {
	return &Adapter{
		loader:   loader,
		provider: provider,
		breaker: circuitbreaker.New[*Checkout](circuitbreaker.Options{
			Name:   "gateway-" + provider.Name(),
			Logger: logger,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrInvalidSpec)
			},
		}),
		logger:  logger,
		pending: make(map[string]*attempt),
	}
}

func (a *Adapter) Provider() string {
	return a.provider.Name()
}

// OnUnmatched sets the handler for outcomes with no pending attempt in this process:
// callbacks delivered twice, or delivered to another instance than the one that opened them.
func (a *Adapter) OnUnmatched(fn UnmatchedFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unmatched = fn
}

// Open loads the gateway client, registers the attempt and prepares the checkout surface.
func (a *Adapter) Open(ctx context.Context, spec PaymentSpec, onSuccess SuccessFunc, onFailure FailureFunc) (*Checkout, error) {
	if spec.CorrelationID == "" || spec.Amount <= 0 {
		return nil, fmt.Errorf("%w: correlation id and positive amount are required", ErrInvalidSpec)
	}

	if err := a.loader.Load(ctx); err != nil {
		return nil, &GatewayLoadError{Provider: a.provider.Name(), Cause: err}
	}

	// registered before Prepare, a webhook may arrive before Prepare returns
	a.mu.Lock()
	a.pending[spec.CorrelationID] = &attempt{onSuccess: onSuccess, onFailure: onFailure, openedAt: time.Now()}
	a.mu.Unlock()

	checkout, err := a.breaker.Execute(func() (*Checkout, error) {
		return a.provider.Prepare(ctx, spec)
	})
	if err != nil {
		a.Forget(spec.CorrelationID)
		return nil, &GatewayLoadError{Provider: a.provider.Name(), Cause: err}
	}

	a.logger.InfoContext(ctx, "payment attempt opened",
		"correlation_id", spec.CorrelationID,
		"provider", a.provider.Name(),
		"amount", spec.Amount)
	return checkout, nil
}

// Resolve delivers a gateway outcome. The pending attempt for its correlation id
// is removed before its callback runs.
func (a *Adapter) Resolve(ctx context.Context, o Outcome) error {
	a.mu.Lock()
	at, ok := a.pending[o.Correlation()]
	if ok {
		delete(a.pending, o.Correlation())
	}
	unmatched := a.unmatched
	a.mu.Unlock()

	if !ok {
		if unmatched == nil {
			return fmt.Errorf("%w: %s", ErrUnknownAttempt, o.Correlation())
		}
		return unmatched(ctx, o)
	}

	a.logger.DebugContext(ctx, "payment attempt resolved",
		"correlation_id", o.Correlation(),
		"elapsed", time.Since(at.openedAt))

	switch v := o.(type) {
	case Success:
		return at.onSuccess(ctx, v)
	case Failure:
		return at.onFailure(ctx, v)
	default:
		return fmt.Errorf("unsupported outcome %T", o)
	}
}

// Forget drops a pending attempt without firing it. It reports whether one existed.
func (a *Adapter) Forget(correlationID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[correlationID]
	delete(a.pending, correlationID)
	return ok
}

func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
