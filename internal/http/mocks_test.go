package http

import (
	"context"
	"errors"
	"sync"

	cart "github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/catalog"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/checkout"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/gateway"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/service"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/reconciliation"
)

// MemoryStore is an in-memory session.Store.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string]*cart.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: map[string]*cart.Snapshot{}}
}

func (m *MemoryStore) Load(_ context.Context, buyerID string) (*cart.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.snapshots[buyerID]; ok {
		return s, nil
	}
	return &cart.Snapshot{UserID: buyerID}, nil
}

func (m *MemoryStore) Save(_ context.Context, s *cart.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.UserID] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, buyerID)
	return nil
}

type MockCatalog struct {
	Artworks map[string]*catalog.Artwork
	Err      error
}

func (m *MockCatalog) GetArtwork(_ context.Context, id string) (*catalog.Artwork, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	a, ok := m.Artworks[id]
	if !ok {
		return nil, catalog.ErrArtworkNotFound
	}
	return a, nil
}

func newCatalog() *MockCatalog {
	discount := int64(18000)
	return &MockCatalog{Artworks: map[string]*catalog.Artwork{
		"1": {ID: "1", Title: "Mystic Mountains", Artist: "Aarav Mehta", Price: 15000, Image: "/img/1.jpg"},
		"2": {ID: "2", Title: "Urban Reflections", Artist: "Diya Sharma", Price: 22000, Discount: &discount},
		"3": {ID: "3", Title: "Silent Waters", Artist: "Kabir Rao", Price: 9000, Sold: true},
	}}
}

type MockPlacer struct {
	mu       sync.Mutex
	Err      error
	Requests []*checkout.OrderRequest
}

func (m *MockPlacer) PlaceOrder(_ context.Context, req *checkout.OrderRequest) (*service.Placement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return &service.Placement{
		Order: &domain.Order{
			CorrelationID: "ORDTEST",
			BuyerID:       req.BuyerID(),
			Amount:        req.TotalAmount(),
			Currency:      domain.CurrencyINR,
			PaymentMethod: req.PaymentMethod(),
			Status:        domain.StatusCreated,
		},
		Checkout: &gateway.Checkout{Provider: "razorpay", OrderID: "ORDTEST", Amount: req.TotalAmount() * 100},
	}, nil
}

type MockResolver struct {
	mu       sync.Mutex
	Err      error
	Outcomes []gateway.Outcome
}

func (m *MockResolver) Resolve(_ context.Context, o gateway.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, o)
	return m.Err
}

type MockHistory struct {
	Page   *service.HistoryPage
	Order  *domain.Order
	Err    error
	Called struct {
		Page, PageSize int
	}
}

func (m *MockHistory) List(_ context.Context, _ string, page, pageSize int) (*service.HistoryPage, error) {
	m.Called.Page, m.Called.PageSize = page, pageSize
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Page, nil
}

func (m *MockHistory) Get(_ context.Context, _, _ string) (*domain.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

type MockCases struct {
	Cases []reconciliation.Case
	Err   error
}

func (m *MockCases) ListOpen(context.Context, int) ([]reconciliation.Case, error) {
	return m.Cases, m.Err
}

type MockPinger struct {
	Err error
}

func (m MockPinger) Ping(context.Context) error { return m.Err }

var errUnavailable = errors.New("connection refused")
