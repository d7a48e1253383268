package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	cart "github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/checkout"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/gateway"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/service"
)

type CartReader interface {
	Cart(ctx context.Context, buyerID string) (*cart.Cart, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req *checkout.OrderRequest) (*service.Placement, error)
}

type CheckoutHandler struct {
	carts   CartReader
	placer  OrderPlacer
	logger  *slog.Logger
	timeout time.Duration
}

func NewCheckoutHandler(carts CartReader, placer OrderPlacer, logger *slog.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		carts:   carts,
		placer:  placer,
		logger:  logger,
		timeout: timeout,
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	var info checkout.BuyerInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.carts.Cart(ctx, buyerID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be loaded")
		return
	}

	req, err := checkout.Build(c, buyerID, info)
	if err != nil {
		h.respondBuildError(w, err)
		return
	}

	placement, err := h.placer.PlaceOrder(ctx, req)
	if err != nil {
		h.respondPlaceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, placement)
}

func (h *CheckoutHandler) respondBuildError(w http.ResponseWriter, err error) {
	var empty *checkout.EmptyCartError
	if errors.As(err, &empty) {
		respondError(w, http.StatusBadRequest, "empty_cart", "your cart is empty")
		return
	}

	var invalid checkout.ValidationErrors
	if errors.As(err, &invalid) {
		respondErrorDetails(w, http.StatusUnprocessableEntity, "validation_failed", "please correct the highlighted fields", invalid)
		return
	}

	respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
}

func (h *CheckoutHandler) respondPlaceError(ctx context.Context, w http.ResponseWriter, err error) {
	var loadErr *gateway.GatewayLoadError
	switch {
	case errors.Is(err, service.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", "an order is already being placed")
	case errors.As(err, &loadErr):
		respondError(w, http.StatusServiceUnavailable, "gateway_unavailable",
			"payment gateway is unavailable, please retry or choose pay on delivery")
	default:
		h.logger.ErrorContext(ctx, "place order failed", "err", err, "request_id", getRequestID(ctx))
		respondError(w, http.StatusInternalServerError, "internal_error", "order could not be placed")
	}
}
