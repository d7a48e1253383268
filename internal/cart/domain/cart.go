package domain

import (
	"errors"
	"sync"
	"time"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// CartItem is one line of the cart. UnitPrice is the effective price in whole rupees.
type CartItem struct {
	ID        string `json:"id" bson:"id"`
	Title     string `json:"title" bson:"title"`
	Creator   string `json:"creator" bson:"creator"`
	UnitPrice int64  `json:"unit_price" bson:"unit_price"`
	Image     string `json:"image" bson:"image"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

func (i CartItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Snapshot is the stored form of a buyer's cart.
type Snapshot struct {
	UserID    string     `json:"user_id" bson:"user_id"`
	Items     []CartItem `json:"items" bson:"items"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// Cart keeps items in insertion order. Totals are always derived from the items.
type Cart struct {
	mu    sync.RWMutex
	items []CartItem
}

func NewCart(items ...CartItem) *Cart {
	c := &Cart{}
	c.Restore(items)
	return c
}

// AddItem merges into an existing line with the same id or appends a new one.
func (c *Cart) AddItem(item CartItem) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i].Quantity += item.Quantity
			return
		}
	}
	c.items = append(c.items, item)
}

// UpdateQuantity rejects quantities below 1 and leaves the line as it was.
// Unknown ids are ignored.
func (c *Cart) UpdateQuantity(id string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Quantity = quantity
			return nil
		}
	}
	return nil
}

func (c *Cart) RemoveItem(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy, callers can't mutate the cart through it.
func (c *Cart) Items() []CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) TotalAmount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int64
	for _, it := range c.items {
		total += it.Subtotal()
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items) == 0
}

// Restore replaces the contents, merging duplicate ids and dropping non-positive quantities.
func (c *Cart) Restore(items []CartItem) {
	c.Clear()
	for _, it := range items {
		if it.Quantity < 1 {
			continue
		}
		c.AddItem(it)
	}
}

func (c *Cart) Snapshot(userID string) Snapshot {
	return Snapshot{
		UserID:    userID,
		Items:     c.Items(),
		UpdatedAt: time.Now().UTC(),
	}
}
