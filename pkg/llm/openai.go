package llm

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/metrics"
)

var versionSuffix = regexp.MustCompile(`/v\d+$`)

// ResolveBaseURL appends the API version path to a base URL unless it
// already ends in one, e.g. https://api.deepseek.com -> https://api.deepseek.com/v1.
func ResolveBaseURL(base, version string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if versionSuffix.MatchString(base) {
		return base
	}
	version = strings.Trim(strings.TrimSpace(version), "/")
	if version == "" {
		version = "v1"
	}
	return base + "/" + version
}

// OpenAICompatibleGateway serves OpenAI, DeepSeek, Zhipu and any other
// provider speaking the /chat/completions protocol.
type OpenAICompatibleGateway struct {
	client   *openai.Client
	provider string
	model    string
	endpoint string
	logger   *zap.Logger
}

// NewOpenAICompatibleGateway creates a gateway for baseURL, which must
// already carry the version path.
func NewOpenAICompatibleGateway(provider, model, apiKey, baseURL string, httpClient *http.Client, logger *zap.Logger) *OpenAICompatibleGateway {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	return &OpenAICompatibleGateway{
		client:   openai.NewClientWithConfig(clientConfig),
		provider: provider,
		model:    model,
		endpoint: clientConfig.BaseURL,
		logger:   logger.Named("llm"),
	}
}

func (g *OpenAICompatibleGateway) Provider() string { return g.provider }

func (g *OpenAICompatibleGateway) Model() string { return g.model }

// TestConnection lists models, which needs a valid key but spends no tokens.
func (g *OpenAICompatibleGateway) TestConnection(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return g.wrapError(err)
	}
	return nil
}

// ChatCompletion sends the system prompt first, then messages in order.
func (g *OpenAICompatibleGateway) ChatCompletion(
	ctx context.Context,
	systemPrompt string,
	messages []Message,
	maxTokens int,
	temperature float64,
) (*Completion, error) {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		chat = append(chat, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		chat = append(chat, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	g.logger.Debug("LLM request",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.Int("messages", len(chat)),
		zap.Int("max_tokens", maxTokens),
		zap.Float64("temperature", temperature))

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    chat,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	})
	if err != nil {
		metrics.Global().LLMRequests.WithLabelValues(g.provider, metrics.Outcome(false)).Inc()
		g.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, g.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.Global().LLMRequests.WithLabelValues(g.provider, metrics.Outcome(false)).Inc()
		return nil, &Error{Type: ErrorTypeUnknown, Message: "no choices in response", Model: g.model, Endpoint: g.endpoint}
	}
	metrics.Global().LLMRequests.WithLabelValues(g.provider, metrics.Outcome(true)).Inc()

	g.logger.Info("LLM request completed",
		zap.String("provider", g.provider),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &Completion{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (g *OpenAICompatibleGateway) wrapError(err error) error {
	e := ClassifyError(err)
	if e.Model == "" {
		e.Model = g.model
	}
	if e.Endpoint == "" {
		e.Endpoint = g.endpoint
	}
	return e
}

func (g *OpenAICompatibleGateway) String() string {
	return fmt.Sprintf("%s/%s", g.provider, g.model)
}

var _ Gateway = (*OpenAICompatibleGateway)(nil)
