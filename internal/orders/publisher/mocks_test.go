package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	r "github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
	"github.com/segmentio/kafka-go"
)

// MockEventSource returns every event until it is marked processed.
type MockEventSource struct {
	mu           sync.Mutex
	Events       []*r.OutboxEvent
	FetchErr     error
	MarkErr      error
	ProcessedIDs []int
}

func (m *MockEventSource) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	done := map[int]bool{}
	for _, id := range m.ProcessedIDs {
		done[id] = true
	}
	var pending []*r.OutboxEvent
	for _, ev := range m.Events {
		if !done[ev.ID] {
			pending = append(pending, ev)
		}
	}
	return pending, nil
}

func (m *MockEventSource) MarkEventAsProcessed(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockEventSource) processed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.ProcessedIDs...)
}

type MockStaleMarker struct {
	mu    sync.Mutex
	Count int
	Err   error
	Calls []time.Duration
}

func (m *MockStaleMarker) MarkStale(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, olderThan)
	return m.Count, m.Err
}

type MockWriter struct {
	mu       sync.Mutex
	Messages []kafka.Message
	// FailKeys makes writes of messages with these keys fail.
	FailKeys map[string]bool
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		if m.FailKeys[string(msg.Key)] {
			return errBrokerDown
		}
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockWriter) Close() error { return nil }

var errBrokerDown = errors.New("kafka: broker not available")
