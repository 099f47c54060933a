package payment

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockProvider returns fake checkouts without network access.
type MockProvider struct {
	Err     error
	counter atomic.Int64
}

// NewMockProvider creates a new mock checkout provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// CreateCheckout returns a deterministic fake checkout.
func (m *MockProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	n := m.counter.Add(1)
	id := fmt.Sprintf("cs_mock_%d", n)
	return &Checkout{ID: id, URL: "https://checkout.invalid/pay/" + id}, nil
}
