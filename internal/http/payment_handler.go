package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/gateway"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/service"
)

const maxCallbackBody = 64 << 10

type OutcomeResolver interface {
	Resolve(ctx context.Context, o gateway.Outcome) error
}

// CallbackParser decodes and verifies a provider payload.
type CallbackParser func(body []byte) (gateway.Outcome, error)

type PaymentHandler struct {
	resolver OutcomeResolver
	razorpay CallbackParser
	midtrans CallbackParser
	logger   *slog.Logger
	timeout  time.Duration
}

// NewPaymentHandler takes a parser per provider. A nil parser disables that provider's route.
func NewPaymentHandler(resolver OutcomeResolver, razorpay, midtrans CallbackParser, logger *slog.Logger, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		resolver: resolver,
		razorpay: razorpay,
		midtrans: midtrans,
		logger:   logger,
		timeout:  timeout,
	}
}

type CallbackResponseDTO struct {
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// POST /api/v1/payments/razorpay/callback
func (h *PaymentHandler) RazorpayCallback(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "razorpay", h.razorpay)
}

// POST /api/v1/payments/midtrans/notification
func (h *PaymentHandler) MidtransNotification(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "midtrans", h.midtrans)
}

func (h *PaymentHandler) handle(w http.ResponseWriter, r *http.Request, provider string, parse CallbackParser) {
	if parse == nil {
		respondError(w, http.StatusNotFound, "provider_disabled", provider+" is not the configured gateway")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}

	outcome, err := parse(body)
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		h.logger.WarnContext(ctx, "gateway callback with bad signature", "provider", provider)
		respondError(w, http.StatusBadRequest, "invalid_signature", err.Error())
		return
	case errors.Is(err, gateway.ErrNotResolved):
		respondJSON(w, http.StatusOK, CallbackResponseDTO{Status: "pending"})
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	cid := outcome.Correlation()
	err = h.resolver.Resolve(ctx, outcome)

	var (
		dup     *service.DuplicateCallbackError
		payment *gateway.GatewayPaymentError
		recon   *service.ReconciliationError
	)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, CallbackResponseDTO{Status: "paid", CorrelationID: cid})
	case errors.As(err, &payment):
		respondJSON(w, http.StatusOK, CallbackResponseDTO{Status: "failed", CorrelationID: cid})
	case errors.As(err, &dup):
		respondJSON(w, http.StatusOK, CallbackResponseDTO{Status: "duplicate", CorrelationID: cid})
	case errors.As(err, &recon):
		respondJSON(w, http.StatusAccepted, CallbackResponseDTO{Status: "reconciliation_pending", CorrelationID: cid})
	case errors.Is(err, gateway.ErrUnknownAttempt), errors.Is(err, repository.ErrOrderNotFound):
		h.logger.WarnContext(ctx, "gateway callback for unknown order", "provider", provider, "correlation_id", cid)
		respondJSON(w, http.StatusOK, CallbackResponseDTO{Status: "unmatched", CorrelationID: cid})
	default:
		h.logger.ErrorContext(ctx, "gateway callback failed", "provider", provider, "correlation_id", cid, "err", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "callback could not be applied")
	}
}
