package gateway

import (
	"context"
	"sync"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

type MockLoader struct {
	mu    sync.Mutex
	Err   error
	Calls int
}

func (m *MockLoader) Load(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Err
}

type MockProvider struct {
	Err      error
	Prepared []PaymentSpec
	// OnPrepare runs inside Prepare, before it returns.
	OnPrepare func(spec PaymentSpec)
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Prepare(_ context.Context, spec PaymentSpec) (*Checkout, error) {
	if m.OnPrepare != nil {
		m.OnPrepare(spec)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.Prepared = append(m.Prepared, spec)
	return &Checkout{Provider: "mock", OrderID: spec.CorrelationID, Amount: spec.Amount, Currency: spec.Currency}, nil
}

type MockSnapClient struct {
	Request  *snap.Request
	Response *snap.Response
	Err      *midtrans.Error
}

func (m *MockSnapClient) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	m.Request = req
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}
