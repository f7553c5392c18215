package llm

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Default endpoints per provider tag.
const (
	DefaultOpenAIBaseURL    = "https://api.openai.com"
	DefaultDeepSeekBaseURL  = "https://api.deepseek.com"
	DefaultZhipuBaseURL     = "https://open.bigmodel.cn/api/paas"
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
)

// GatewayFactory builds a Gateway for a model configuration.
// Use this interface for dependency injection and testing.
type GatewayFactory interface {
	Create(cfg GatewayConfig) Gateway
}

// Factory creates gateways sharing one HTTP timeout.
type Factory struct {
	httpClient     *http.Client
	defaultBaseURL string
	logger         *zap.Logger
}

// NewFactory creates a factory. defaultBaseURL applies to unknown provider
// tags that have no base URL of their own.
func NewFactory(timeout time.Duration, defaultBaseURL string, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultBaseURL == "" {
		defaultBaseURL = DefaultDeepSeekBaseURL
	}
	return &Factory{
		httpClient:     &http.Client{Timeout: timeout},
		defaultBaseURL: defaultBaseURL,
		logger:         logger,
	}
}

// Create returns the gateway for cfg. An empty API key yields a
// SimulatedGateway; an unknown provider falls back to OpenAI-compatible.
func (f *Factory) Create(cfg GatewayConfig) Gateway {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	if cfg.APIKey == "" {
		f.logger.Warn("No API key configured, using simulated LLM responses",
			zap.String("provider", provider),
			zap.String("model", cfg.Model))
		return NewSimulatedGateway(provider, cfg.Model)
	}

	switch provider {
	case "anthropic", "claude":
		base := cfg.APIBase
		if base != "" {
			base = ResolveBaseURL(base, cfg.APIVersion)
		}
		return NewAnthropicGateway(cfg.Model, cfg.APIKey, base, f.httpClient, f.logger)
	case "openai":
		return f.openAICompatible(provider, cfg, DefaultOpenAIBaseURL, "v1")
	case "deepseek":
		return f.openAICompatible(provider, cfg, DefaultDeepSeekBaseURL, "v1")
	case "zhipu", "glm":
		return f.openAICompatible(provider, cfg, DefaultZhipuBaseURL, "v4")
	default:
		f.logger.Warn("Unknown LLM provider, falling back to OpenAI-compatible protocol",
			zap.String("provider", provider))
		return f.openAICompatible(provider, cfg, f.defaultBaseURL, "v1")
	}
}

func (f *Factory) openAICompatible(provider string, cfg GatewayConfig, defaultBase, defaultVersion string) Gateway {
	base := cfg.APIBase
	if base == "" {
		base = defaultBase
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultVersion
	}
	return NewOpenAICompatibleGateway(provider, cfg.Model, cfg.APIKey, ResolveBaseURL(base, version), f.httpClient, f.logger)
}

var _ GatewayFactory = (*Factory)(nil)
