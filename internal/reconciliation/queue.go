package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const Topic = "order-reconciliation"

// Entry is a gateway success whose order could not be updated.
type Entry struct {
	OrderID       string    `json:"order_id"`
	CorrelationID string    `json:"correlation_id"`
	BuyerID       string    `json:"buyer_id"`
	PaymentID     string    `json:"payment_id"`
	Signature     string    `json:"signature"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Cause         string    `json:"cause"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Queue interface {
	Enqueue(ctx context.Context, e Entry) error
}

type KafkaQueue struct {
	writer *kafka.Writer
}

func NewKafkaQueue(brokers ...string) *KafkaQueue {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaQueue{writer: w}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal reconciliation entry: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.CorrelationID),
		Value: payload,
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("enqueue reconciliation entry %s: %w", e.CorrelationID, err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}

// MemoryQueue keeps entries in process. Used in dev and tests.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return nil
}

func (q *MemoryQueue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}
