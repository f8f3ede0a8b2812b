package provider

import (
	"context"
	"sync"
)

func init() {
	RegisterFactory("mock", func(config map[string]any) (Provider, error) {
		name, _ := config["name"].(string)
		if name == "" {
			name = "mock"
		}
		return NewMockProvider(name), nil
	})
}

// MockProvider is a scripted provider for tests. Responses and errors are
// consumed in order; once exhausted it returns a fixed default.
type MockProvider struct {
	ProviderName string

	Responses []*CompletionResponse
	Errors    []error

	// Calls records every request for assertions.
	Calls []CompletionRequest

	mu    sync.Mutex
	index int
}

// NewMockProvider creates a mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{ProviderName: name}
}

// Script queues a sequence of plain-text responses.
func (m *MockProvider) Script(contents ...string) *MockProvider {
	for _, c := range contents {
		m.Responses = append(m.Responses, &CompletionResponse{Content: c, FinishReason: "stop"})
		m.Errors = append(m.Errors, nil)
	}
	return m
}

// Fail queues an error response.
func (m *MockProvider) Fail(err error) *MockProvider {
	m.Responses = append(m.Responses, nil)
	m.Errors = append(m.Errors, err)
	return m
}

// Name implements Provider.
func (m *MockProvider) Name() string { return m.ProviderName }

// CreateCompletion implements Provider.
func (m *MockProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if m.index < len(m.Errors) && m.Errors[m.index] != nil {
		err := m.Errors[m.index]
		m.index++
		return nil, err
	}
	if m.index < len(m.Responses) {
		resp := m.Responses[m.index]
		m.index++
		return resp, nil
	}
	return &CompletionResponse{Content: "mock response", FinishReason: "stop"}, nil
}
