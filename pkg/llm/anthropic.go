package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/metrics"
)

// AnthropicGateway sends Messages API requests through go-anthropic.
type AnthropicGateway struct {
	client   *anthropic.Client
	model    string
	endpoint string
	logger   *zap.Logger
}

// NewAnthropicGateway creates a gateway. baseURL may be empty for the public API.
func NewAnthropicGateway(model, apiKey, baseURL string, httpClient *http.Client, logger *zap.Logger) *AnthropicGateway {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	if httpClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(httpClient))
	}

	return &AnthropicGateway{
		client:   anthropic.NewClient(apiKey, opts...),
		model:    model,
		endpoint: baseURL,
		logger:   logger.Named("llm"),
	}
}

func (g *AnthropicGateway) Provider() string { return "anthropic" }

func (g *AnthropicGateway) Model() string { return g.model }

// TestConnection sends a one-token message.
func (g *AnthropicGateway) TestConnection(ctx context.Context) error {
	ping := "ping"
	_, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		MaxTokens: 1,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{{Type: "text", Text: &ping}}},
		},
	})
	if err != nil {
		return g.wrapError(err)
	}
	return nil
}

// ChatCompletion carries the system prompt in MessagesRequest.System.
func (g *AnthropicGateway) ChatCompletion(
	ctx context.Context,
	systemPrompt string,
	messages []Message,
	maxTokens int,
	temperature float64,
) (*Completion, error) {
	msgs := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		text := m.Content
		role := anthropic.RoleUser
		if m.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{{Type: "text", Text: &text}},
		})
	}

	temp := float32(temperature)
	start := time.Now()

	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(g.model),
		System:      systemPrompt,
		MaxTokens:   maxTokens,
		Temperature: &temp,
		Messages:    msgs,
	})
	if err != nil {
		metrics.Global().LLMRequests.WithLabelValues(g.Provider(), metrics.Outcome(false)).Inc()
		g.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, g.wrapError(err)
	}
	metrics.Global().LLMRequests.WithLabelValues(g.Provider(), metrics.Outcome(true)).Inc()

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			content.WriteString(*block.Text)
		}
	}

	g.logger.Info("LLM request completed",
		zap.String("provider", g.Provider()),
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &Completion{
		Content:          content.String(),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

func (g *AnthropicGateway) wrapError(err error) error {
	e := ClassifyError(err)
	if e.Model == "" {
		e.Model = g.model
	}
	if e.Endpoint == "" {
		e.Endpoint = g.endpoint
	}
	return e
}

var _ Gateway = (*AnthropicGateway)(nil)
