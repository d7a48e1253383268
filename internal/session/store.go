package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/cache"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/repository"
)

// Store persists session cart snapshots.
type Store interface {
	Load(ctx context.Context, buyerID string) (*domain.Snapshot, error)
	Save(ctx context.Context, snapshot *domain.Snapshot) error
	Delete(ctx context.Context, buyerID string) error
}

// CachedStore reads through the cart cache to the durable repository.
type CachedStore struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	logger *slog.Logger
}

func NewCachedStore(repo repository.CartRepository, cache cache.CartCache, logger *slog.Logger) *CachedStore {
	return &CachedStore{repo: repo, cache: cache, logger: logger}
}

func (s *CachedStore) Load(ctx context.Context, buyerID string) (*domain.Snapshot, error) {
	snapshot, err := s.cache.Get(ctx, buyerID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "cache get error", "buyer_id", buyerID, "err", err)
	}

	snapshot, err = s.repo.GetCart(ctx, buyerID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return &domain.Snapshot{UserID: buyerID, UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, buyerID, snapshot); err != nil {
		s.logger.WarnContext(ctx, "cache set error", "buyer_id", buyerID, "err", err)
	}
	return snapshot, nil
}

func (s *CachedStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if err := s.repo.SaveCart(ctx, snapshot); err != nil {
		return err
	}
	s.invalidate(snapshot.UserID)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, buyerID string) error {
	if err := s.repo.DeleteCart(ctx, buyerID); err != nil {
		return err
	}
	s.invalidate(buyerID)
	return nil
}

func (s *CachedStore) invalidate(buyerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, buyerID); err != nil {
		s.logger.Warn("cache invalidate error", "buyer_id", buyerID, "err", err)
	}
}
