package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/repository"
)

type MockStore struct {
	mu        sync.Mutex
	Snapshots map[string]*domain.Snapshot
	LoadErr   error
	SaveErr   error
	LoadDelay time.Duration
	Loads     atomic.Int32
	Saves     int
	Deletes   int
}

func NewMockStore() *MockStore {
	return &MockStore{Snapshots: map[string]*domain.Snapshot{}}
}

func (m *MockStore) Load(_ context.Context, buyerID string) (*domain.Snapshot, error) {
	m.Loads.Add(1)
	if m.LoadDelay > 0 {
		time.Sleep(m.LoadDelay)
	}
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Snapshots[buyerID]; ok {
		return s, nil
	}
	return &domain.Snapshot{UserID: buyerID}, nil
}

func (m *MockStore) Save(_ context.Context, s *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saves++
	m.Snapshots[s.UserID] = s
	return nil
}

func (m *MockStore) Delete(_ context.Context, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
	delete(m.Snapshots, buyerID)
	return nil
}

// MockCartRepository is an in-memory repository.CartRepository.
type MockCartRepository struct {
	mu    sync.Mutex
	Carts map[string]*domain.Snapshot
	Err   error
	Gets  int
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{Carts: map[string]*domain.Snapshot{}}
}

func (m *MockCartRepository) GetCart(_ context.Context, userID string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.Carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return s, nil
}

func (m *MockCartRepository) SaveCart(_ context.Context, s *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Carts[s.UserID] = s
	return nil
}

func (m *MockCartRepository) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Carts, userID)
	return nil
}

var errStoreDown = errors.New("mongo unavailable")
