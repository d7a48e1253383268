package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

type OrderQuerier interface {
	QueryOrders(ctx context.Context, buyerID string, offset, limit int) ([]*domain.Order, int, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error)
}

type HistoryPage struct {
	Orders     []*domain.Order `json:"orders"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int             `json:"total_count"`
	TotalPages int             `json:"total_pages"`
}

// HistoryReader is the read-only view of a buyer's orders.
type HistoryReader struct {
	repo   OrderQuerier
	logger *slog.Logger
}

func NewHistoryReader(repo OrderQuerier, logger *slog.Logger) *HistoryReader {
	return &HistoryReader{repo: repo, logger: logger}
}

// List returns the 1-based page of the buyer's orders, newest first.
func (h *HistoryReader) List(ctx context.Context, buyerID string, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}

	orders, total, err := h.repo.QueryOrders(ctx, buyerID, (page-1)*pageSize, pageSize)
	if err != nil {
		h.logger.ErrorContext(ctx, "order history query failed", "buyer_id", buyerID, "err", err)
		return nil, &HistoryUnavailableError{BuyerID: buyerID, Cause: err}
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	return &HistoryPage{
		Orders:     orders,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Get returns one order of the buyer. Orders of other buyers are not found.
func (h *HistoryReader) Get(ctx context.Context, buyerID, correlationID string) (*domain.Order, error) {
	order, err := h.repo.FindByCorrelationID(ctx, correlationID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, repository.ErrOrderNotFound
	}
	if err != nil {
		return nil, &HistoryUnavailableError{BuyerID: buyerID, Cause: err}
	}
	if order.BuyerID != buyerID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}
