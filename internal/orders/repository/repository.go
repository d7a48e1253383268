package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrStatusConflict       = errors.New("order status changed concurrently")
	ErrDuplicateCorrelation = errors.New("order with this correlation id already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Patch is a terminal update. ExpectStatus, when set, guards the update:
// it only applies while the stored status still equals it.
type Patch struct {
	ExpectStatus     domain.Status
	Status           domain.Status
	PaymentID        *string
	PaymentSignature *string
	Failure          *domain.FailureDetails
}

type OutboxEvent struct {
	ID          int
	AggregateId string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type OrderRepository interface {
	InsertOrder(ctx context.Context, order *domain.Order) error
	UpdateOrder(ctx context.Context, id uuid.UUID, patch Patch) (*domain.Order, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error)
	QueryOrders(ctx context.Context, buyerID string, offset, limit int) ([]*domain.Order, int, error)
	// MarkStale flags created orders older than the bound and returns them.
	MarkStale(ctx context.Context, olderThan time.Time) ([]*domain.Order, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error

	Ping(ctx context.Context) error
	RunMigrations(*Credentials) error
	Close() error
}

const (
	EventOrderCreated = "OrderCreated"
	EventOrderPaid    = "OrderPaid"
	EventOrderFailed  = "OrderFailed"
	EventOrderRefund  = "OrderRefunded"
)

func eventTypeFor(s domain.Status) string {
	switch s {
	case domain.StatusPaid:
		return EventOrderPaid
	case domain.StatusFailed:
		return EventOrderFailed
	case domain.StatusRefunded:
		return EventOrderRefund
	default:
		return EventOrderCreated
	}
}

type statusEvent struct {
	OrderID       uuid.UUID     `json:"order_id"`
	CorrelationID string        `json:"correlation_id"`
	BuyerID       string        `json:"buyer_id"`
	Status        domain.Status `json:"status"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	PaymentMethod string        `json:"payment_method"`
	PaymentID     *string       `json:"payment_id,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func eventPayload(o *domain.Order) ([]byte, error) {
	return json.Marshal(statusEvent{
		OrderID:       o.ID,
		CorrelationID: o.CorrelationID,
		BuyerID:       o.BuyerID,
		Status:        o.Status,
		Amount:        o.Amount,
		Currency:      o.Currency,
		PaymentMethod: string(o.PaymentMethod),
		PaymentID:     o.PaymentID,
		OccurredAt:    o.UpdatedAt,
	})
}
