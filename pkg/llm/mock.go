package llm

import (
	"context"
	"sync"
)

// MockGateway is a configurable mock for testing chat flows.
// Set the function fields to control behavior in tests.
type MockGateway struct {
	// ChatCompletionFunc is called when ChatCompletion is invoked.
	// If nil, returns an empty completion and nil error.
	ChatCompletionFunc func(ctx context.Context, systemPrompt string, messages []Message, maxTokens int, temperature float64) (*Completion, error)

	// TestConnectionFunc is called when TestConnection is invoked.
	TestConnectionFunc func(ctx context.Context) error

	ProviderName string
	ModelName    string

	mu sync.Mutex

	// Call tracking for verification
	ChatCompletionCalls int
	TestConnectionCalls int
	LastSystemPrompt    string
	LastMessages        []Message
	LastTemperature     float64
	LastMaxTokens       int
}

// NewMockGateway creates a new mock with sensible defaults.
func NewMockGateway() *MockGateway {
	return &MockGateway{ProviderName: "mock", ModelName: "mock-model"}
}

// ChatCompletion implements Gateway.
func (m *MockGateway) ChatCompletion(ctx context.Context, systemPrompt string, messages []Message, maxTokens int, temperature float64) (*Completion, error) {
	m.mu.Lock()
	m.ChatCompletionCalls++
	m.LastSystemPrompt = systemPrompt
	m.LastMessages = append([]Message(nil), messages...)
	m.LastTemperature = temperature
	m.LastMaxTokens = maxTokens
	m.mu.Unlock()

	if m.ChatCompletionFunc != nil {
		return m.ChatCompletionFunc(ctx, systemPrompt, messages, maxTokens, temperature)
	}
	return &Completion{}, nil
}

// TestConnection implements Gateway.
func (m *MockGateway) TestConnection(ctx context.Context) error {
	m.mu.Lock()
	m.TestConnectionCalls++
	m.mu.Unlock()

	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx)
	}
	return nil
}

// Provider implements Gateway.
func (m *MockGateway) Provider() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Model implements Gateway.
func (m *MockGateway) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// MockFactory returns Gateway for every config and records the last one.
type MockFactory struct {
	Gateway Gateway

	mu          sync.Mutex
	CreateCalls int
	LastConfig  GatewayConfig
}

// Create implements GatewayFactory.
func (f *MockFactory) Create(cfg GatewayConfig) Gateway {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	f.LastConfig = cfg
	return f.Gateway
}

var (
	_ Gateway        = (*MockGateway)(nil)
	_ GatewayFactory = (*MockFactory)(nil)
)
