package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/service"
	"github.com/go-chi/chi/v5"
)

type OrderHistory interface {
	List(ctx context.Context, buyerID string, page, pageSize int) (*service.HistoryPage, error)
	Get(ctx context.Context, buyerID, correlationID string) (*domain.Order, error)
}

type OrdersHandler struct {
	history OrderHistory
	timeout time.Duration
}

func NewOrdersHandler(history OrderHistory, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		history: history,
		timeout: timeout,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page", "page must be an integer")
		return
	}
	pageSize, err := queryInt(r, "page_size", service.DefaultPageSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page_size", "page_size must be an integer")
		return
	}

	result, err := h.history.List(ctx, buyerID, page, pageSize)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "history_unavailable", "order history is temporarily unavailable")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.history.Get(ctx, buyerID, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "history_unavailable", "order history is temporarily unavailable")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
