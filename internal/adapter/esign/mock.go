package esign

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockProvider records envelope requests without calling DocuSign.
type MockProvider struct {
	mu       sync.Mutex
	Err      error
	Requests []EnvelopeRequest
}

// NewMockProvider creates a new mock signature provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// CreateEnvelope returns a random envelope id or the configured error.
func (m *MockProvider) CreateEnvelope(ctx context.Context, req EnvelopeRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Requests = append(m.Requests, req)
	return "env-" + uuid.NewString(), nil
}

// RequestCount returns the number of envelopes created.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
