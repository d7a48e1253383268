package reconciliation

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

type MockRecorder struct {
	mu      sync.Mutex
	Entries []Entry
	Seen    map[string]bool
	FailFor int // fail this many calls before succeeding
	Calls   int
}

func (m *MockRecorder) Record(_ context.Context, e Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.FailFor > 0 {
		m.FailFor--
		return false, errTemporary
	}
	if m.Seen == nil {
		m.Seen = map[string]bool{}
	}
	if m.Seen[e.CorrelationID] {
		return false, nil
	}
	m.Seen[e.CorrelationID] = true
	m.Entries = append(m.Entries, e)
	return true, nil
}

func (m *MockRecorder) recorded() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.Entries))
	copy(out, m.Entries)
	return out
}

type MockReader struct {
	Messages  []kafka.Message
	Committed []kafka.Message
	Closed    bool
}

func (m *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(m.Messages) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := m.Messages[0]
	m.Messages = m.Messages[1:]
	return msg, nil
}

func (m *MockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.Committed = append(m.Committed, msgs...)
	return nil
}

func (m *MockReader) Close() error {
	m.Closed = true
	return nil
}
