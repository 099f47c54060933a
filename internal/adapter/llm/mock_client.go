package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a deterministic Generator for local runs and tests.
type MockClient struct {
	mu       sync.Mutex
	Response string
	Err      error
	Calls    int
}

// NewMockClient creates a new mock generator.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate returns the configured response or error.
func (m *MockClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return fmt.Sprintf("[MOCK] Both parties should document their agreed terms and complete them within 30 days. (%s)", truncate(userPrompt, 60)), nil
}

// CallCount returns the number of Generate calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
