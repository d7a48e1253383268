package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/gateway"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/session"
	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory repository.OrderRepository that
// enforces the same status precondition as the postgres one.
type MockOrderRepository struct {
	mu        sync.Mutex
	Orders    map[uuid.UUID]*domain.Order
	InsertErr error
	// InsertErrs are returned by successive InsertOrder calls before InsertErr.
	InsertErrs []error
	UpdateErr  error
	FindErr    error
	QueryErr   error
	Inserts    int
	Updates    int
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{Orders: map[uuid.UUID]*domain.Order{}}
}

func (m *MockOrderRepository) InsertOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.InsertErrs) > 0 {
		err := m.InsertErrs[0]
		m.InsertErrs = m.InsertErrs[1:]
		return err
	}
	if m.InsertErr != nil {
		return m.InsertErr
	}
	for _, o := range m.Orders {
		if o.CorrelationID == order.CorrelationID {
			return repository.ErrDuplicateCorrelation
		}
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	cp := *order
	m.Orders[order.ID] = &cp
	m.Inserts++
	return nil
}

func (m *MockOrderRepository) UpdateOrder(_ context.Context, id uuid.UUID, p repository.Patch) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	o, ok := m.Orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if p.ExpectStatus != "" && o.Status != p.ExpectStatus {
		return nil, repository.ErrStatusConflict
	}
	o.Status = p.Status
	if p.PaymentID != nil {
		o.PaymentID = p.PaymentID
	}
	if p.PaymentSignature != nil {
		o.PaymentSignature = p.PaymentSignature
	}
	if p.Failure != nil {
		o.Failure = p.Failure
	}
	o.UpdatedAt = time.Now()
	m.Updates++
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepository) FindByCorrelationID(_ context.Context, cid string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, o := range m.Orders {
		if o.CorrelationID == cid {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepository) QueryOrders(_ context.Context, buyerID string, offset, limit int) ([]*domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, 0, m.QueryErr
	}
	var mine []*domain.Order
	for _, o := range m.Orders {
		if o.BuyerID == buyerID {
			cp := *o
			mine = append(mine, &cp)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	total := len(mine)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return mine[offset:end], total, nil
}

func (m *MockOrderRepository) MarkStale(_ context.Context, olderThan time.Time) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.Orders {
		if o.Status == domain.StatusCreated && o.StaleAt == nil && o.CreatedAt.Before(olderThan) {
			now := time.Now()
			o.StaleAt = &now
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (m *MockOrderRepository) MarkEventAsProcessed(context.Context, int) error { return nil }
func (m *MockOrderRepository) Ping(context.Context) error                      { return nil }
func (m *MockOrderRepository) RunMigrations(*repository.Credentials) error     { return nil }
func (m *MockOrderRepository) Close() error                                    { return nil }

// Find returns the stored order with the correlation id, or nil.
func (m *MockOrderRepository) Find(cid string) *domain.Order {
	o, _ := m.FindByCorrelationID(context.Background(), cid)
	return o
}

// backdate moves every order's creation time into the past.
func (m *MockOrderRepository) backdate(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.Orders {
		o.CreatedAt = o.CreatedAt.Add(-d)
	}
}

type MockProvider struct {
	mu       sync.Mutex
	Err      error
	Prepared []gateway.PaymentSpec
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Prepare(_ context.Context, spec gateway.PaymentSpec) (*gateway.Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Prepared = append(m.Prepared, spec)
	return &gateway.Checkout{Provider: "mock", OrderID: spec.CorrelationID, Amount: spec.Amount, Currency: spec.Currency}, nil
}

type MockSessions struct {
	mu            sync.Mutex
	Cleared       []string
	ClearErr      error
	Notifications map[string][]session.Notification
}

func NewMockSessions() *MockSessions {
	return &MockSessions{Notifications: map[string][]session.Notification{}}
}

func (m *MockSessions) ClearCart(_ context.Context, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.Cleared = append(m.Cleared, buyerID)
	return nil
}

func (m *MockSessions) Notify(buyerID string, n session.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications[buyerID] = append(m.Notifications[buyerID], n)
}

func (m *MockSessions) Last(buyerID string) session.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.Notifications[buyerID]
	if len(ns) == 0 {
		return session.Notification{}
	}
	return ns[len(ns)-1]
}

func (m *MockSessions) ClearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Cleared)
}

var errDBDown = errors.New("postgres unavailable")
