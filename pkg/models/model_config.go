package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
)

// Defaults applied to a ModelConfig when the caller leaves them unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// ModelConfig is a configured LLM endpoint. APIKey holds the vault
// ciphertext at rest and is never serialized.
type ModelConfig struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Provider    string    `json:"provider"` // "openai", "deepseek", "zhipu", "anthropic", ...
	ModelName   string    `json:"model_name"`
	APIBase     string    `json:"api_base,omitempty"`
	APIVersion  string    `json:"api_version,omitempty"`
	APIKey      string    `json:"-"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	IsDefault   bool      `json:"is_default"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ApplyDefaults fills zero-valued MaxTokens.
func (m *ModelConfig) ApplyDefaults() {
	if m.MaxTokens == 0 {
		m.MaxTokens = DefaultMaxTokens
	}
}

// Validate checks required fields and value ranges.
func (m *ModelConfig) Validate() error {
	switch {
	case strings.TrimSpace(m.Name) == "":
		return fmt.Errorf("%w: name is required", apperrors.ErrInvalidInput)
	case strings.TrimSpace(m.Provider) == "":
		return fmt.Errorf("%w: provider is required", apperrors.ErrInvalidInput)
	case strings.TrimSpace(m.ModelName) == "":
		return fmt.Errorf("%w: model_name is required", apperrors.ErrInvalidInput)
	case m.Temperature < 0 || m.Temperature > 2:
		return fmt.Errorf("%w: temperature must be between 0 and 2, got %v", apperrors.ErrInvalidInput, m.Temperature)
	case m.MaxTokens <= 0:
		return fmt.Errorf("%w: max_tokens must be positive, got %d", apperrors.ErrInvalidInput, m.MaxTokens)
	}
	return nil
}
