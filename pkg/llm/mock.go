package llm

import (
	"context"
)

// MockChatClient is a configurable mock for testing LLM functionality.
// Set the function field to control behavior in tests.
type MockChatClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns an empty result and nil error.
	CompleteFunc func(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	// Call tracking for verification
	CompleteCalls int
	Requests      []*CompletionRequest
}

// NewMockChatClient creates a new mock with sensible defaults.
func NewMockChatClient() *MockChatClient {
	return &MockChatClient{
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// Complete implements ChatClient.
func (m *MockChatClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	m.CompleteCalls++
	m.Requests = append(m.Requests, req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResult{FinishReason: FinishReasonStop}, nil
}

// GetModel implements ChatClient.
func (m *MockChatClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements ChatClient.
func (m *MockChatClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Reset clears call tracking.
func (m *MockChatClient) Reset() {
	m.CompleteCalls = 0
	m.Requests = nil
}

// Ensure MockChatClient implements ChatClient at compile time.
var _ ChatClient = (*MockChatClient)(nil)

// MockClientFactory is a configurable mock for testing client creation.
// The primary and fallback clients are tracked separately so tests can
// assert which model handled which call.
type MockClientFactory struct {
	// CreateChatClientFunc overrides CreateChatClient when set.
	CreateChatClientFunc func() (ChatClient, error)

	// CreateFallbackClientFunc overrides CreateFallbackClient when set.
	CreateFallbackClientFunc func() (ChatClient, error)

	// MockClient and MockFallback are the defaults returned otherwise.
	MockClient   *MockChatClient
	MockFallback *MockChatClient
}

// NewMockClientFactory creates a new mock client factory.
func NewMockClientFactory() *MockClientFactory {
	primary := NewMockChatClient()
	fallback := NewMockChatClient()
	fallback.Model = "mock-fallback-model"
	return &MockClientFactory{
		MockClient:   primary,
		MockFallback: fallback,
	}
}

// CreateChatClient implements ClientFactory.
func (f *MockClientFactory) CreateChatClient() (ChatClient, error) {
	if f.CreateChatClientFunc != nil {
		return f.CreateChatClientFunc()
	}
	return f.MockClient, nil
}

// CreateFallbackClient implements ClientFactory.
func (f *MockClientFactory) CreateFallbackClient() (ChatClient, error) {
	if f.CreateFallbackClientFunc != nil {
		return f.CreateFallbackClientFunc()
	}
	return f.MockFallback, nil
}

// Ensure MockClientFactory implements ClientFactory at compile time.
var _ ClientFactory = (*MockClientFactory)(nil)
