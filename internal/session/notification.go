package session

import "time"

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Notification is one toast for the buyer.
type Notification struct {
	Kind          Kind      `json:"kind"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	At            time.Time `json:"at"`
}

const feedSize = 20

// feed is a bounded FIFO; the oldest entry is dropped when full.
type feed struct {
	items []Notification
}

func (f *feed) push(n Notification) {
	if len(f.items) == feedSize {
		copy(f.items, f.items[1:])
		f.items = f.items[:feedSize-1]
	}
	f.items = append(f.items, n)
}

func (f *feed) drain() []Notification {
	out := f.items
	f.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}
