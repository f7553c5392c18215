// Package llm provides chat-completion gateways for OpenAI-compatible and
// Anthropic providers, plus a simulated gateway for keyless development.
package llm

import (
	"context"
)

// Message roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the result of one chat completion.
type Completion struct {
	Content          string
	Simulated        bool
	PromptTokens     int
	CompletionTokens int
}

// Gateway sends chat completions to one configured model.
// Use this interface for dependency injection to enable mocking in tests.
type Gateway interface {
	// TestConnection performs a cheap authenticated request against the provider.
	TestConnection(ctx context.Context) error

	// ChatCompletion sends the system prompt followed by messages.
	ChatCompletion(ctx context.Context, systemPrompt string, messages []Message, maxTokens int, temperature float64) (*Completion, error)

	// Provider returns the lowercased provider tag.
	Provider() string

	// Model returns the configured model name.
	Model() string
}

// GatewayConfig holds the decrypted settings for one model.
type GatewayConfig struct {
	Provider   string
	Model      string
	APIKey     string // plaintext; never logged
	APIBase    string
	APIVersion string
}
