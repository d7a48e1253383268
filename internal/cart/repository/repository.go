package repository

import (
	"context"
	"errors"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository is the durable store for session cart snapshots.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Snapshot, error)
	SaveCart(ctx context.Context, snapshot *domain.Snapshot) error
	DeleteCart(ctx context.Context, userID string) error
}
