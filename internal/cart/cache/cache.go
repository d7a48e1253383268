package cache

import (
	"context"
	"errors"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Snapshot, error)
	Set(ctx context.Context, userID string, snapshot *domain.Snapshot) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
