package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"golang.org/x/sync/singleflight"
)

// Session is the scoped context of one signed-in buyer.
type Session struct {
	BuyerID   string
	Cart      *domain.Cart
	StartedAt time.Time
}

// Manager owns the live sessions of this process and their notification feeds.
type Manager struct {
	store  Store
	logger *slog.Logger
	sfg    singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
	feeds    map[string]*feed
}

func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		sessions: make(map[string]*Session),
		feeds:    make(map[string]*feed),
	}
}

// Acquire returns the buyer's session, restoring the cart from the store on first use.
func (m *Manager) Acquire(ctx context.Context, buyerID string) (*Session, error) {
	if s, ok := m.get(buyerID); ok {
		return s, nil
	}

	v, err, _ := m.sfg.Do(buyerID, func() (interface{}, error) {
		if s, ok := m.get(buyerID); ok {
			return s, nil
		}

		snapshot, err := m.store.Load(ctx, buyerID)
		if err != nil {
			return nil, fmt.Errorf("load cart snapshot: %w", err)
		}

		s := &Session{BuyerID: buyerID, Cart: domain.NewCart(), StartedAt: time.Now().UTC()}
		s.Cart.Restore(snapshot.Items)

		m.mu.Lock()
		m.sessions[buyerID] = s
		m.mu.Unlock()

		m.logger.InfoContext(ctx, "session started", "buyer_id", buyerID, "items", s.Cart.ItemCount())
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) get(buyerID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[buyerID]
	return s, ok
}

// End persists the cart and drops the session.
func (m *Manager) End(ctx context.Context, buyerID string) error {
	s, ok := m.get(buyerID)
	if !ok {
		return nil
	}

	if err := m.persist(ctx, s); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, buyerID)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session ended", "buyer_id", buyerID)
	return nil
}

func (m *Manager) Cart(ctx context.Context, buyerID string) (*domain.Cart, error) {
	s, err := m.Acquire(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return s.Cart, nil
}

func (m *Manager) AddItem(ctx context.Context, buyerID string, item domain.CartItem) (*domain.Cart, error) {
	return m.mutate(ctx, buyerID, func(c *domain.Cart) error {
		c.AddItem(item)
		return nil
	})
}

func (m *Manager) UpdateQuantity(ctx context.Context, buyerID, itemID string, quantity int) (*domain.Cart, error) {
	return m.mutate(ctx, buyerID, func(c *domain.Cart) error {
		return c.UpdateQuantity(itemID, quantity)
	})
}

func (m *Manager) RemoveItem(ctx context.Context, buyerID, itemID string) (*domain.Cart, error) {
	return m.mutate(ctx, buyerID, func(c *domain.Cart) error {
		c.RemoveItem(itemID)
		return nil
	})
}

// ClearCart empties the cart after a confirmed payment.
func (m *Manager) ClearCart(ctx context.Context, buyerID string) error {
	_, err := m.mutate(ctx, buyerID, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
	return err
}

func (m *Manager) mutate(ctx context.Context, buyerID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	s, err := m.Acquire(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if err := fn(s.Cart); err != nil {
		return nil, err
	}
	if err := m.persist(ctx, s); err != nil {
		return nil, err
	}
	return s.Cart, nil
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	snapshot := s.Cart.Snapshot(s.BuyerID)
	if len(snapshot.Items) == 0 {
		if err := m.store.Delete(ctx, s.BuyerID); err != nil {
			return fmt.Errorf("delete cart snapshot: %w", err)
		}
		return nil
	}
	if err := m.store.Save(ctx, &snapshot); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

// Notify appends to the buyer's feed. Feeds outlive sessions so a late
// gateway callback still reaches the buyer.
func (m *Manager) Notify(buyerID string, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	m.mu.Lock()
	f, ok := m.feeds[buyerID]
	if !ok {
		f = &feed{}
		m.feeds[buyerID] = f
	}
	f.push(n)
	m.mu.Unlock()
}

// Drain returns and clears the buyer's pending notifications, oldest first.
func (m *Manager) Drain(buyerID string) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feeds[buyerID]
	if !ok {
		return []Notification{}
	}
	out := f.drain()
	delete(m.feeds, buyerID)
	return out
}
