package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/crypto"
	"github.com/wenshu-inc/wenshu-engine/pkg/llm"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/repositories"
)

// ModelInput carries the editable fields of a model configuration. APIKey is
// plaintext; empty on update keeps the stored key.
type ModelInput struct {
	Name        string   `json:"name"`
	Provider    string   `json:"provider"`
	ModelName   string   `json:"model_name"`
	APIBase     string   `json:"api_base"`
	APIVersion  string   `json:"api_version"`
	APIKey      string   `json:"api_key"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens"`
	IsDefault   bool     `json:"is_default"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// ModelTestRequest tests either a stored model (ID) or an inline configuration.
type ModelTestRequest struct {
	ID     *uuid.UUID  `json:"id,omitempty"`
	Inline *ModelInput `json:"config,omitempty"`
}

// ModelTestResult is the outcome of a model connection test.
type ModelTestResult struct {
	Success   bool   `json:"success"`
	Simulated bool   `json:"simulated"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
}

// ModelService manages LLM model configurations.
type ModelService interface {
	Create(ctx context.Context, input *ModelInput) (*models.ModelConfig, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error)
	GetByName(ctx context.Context, name string) (*models.ModelConfig, error)
	GetDefault(ctx context.Context) (*models.ModelConfig, error)
	List(ctx context.Context) ([]*models.ModelConfig, error)
	Update(ctx context.Context, id uuid.UUID, input *ModelInput) (*models.ModelConfig, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// SetDefault makes id the only default model.
	SetDefault(ctx context.Context, id uuid.UUID) error

	TestConnection(ctx context.Context, req *ModelTestRequest) (*ModelTestResult, error)

	// Gateway builds the gateway for a stored model, decrypting its key.
	Gateway(m *models.ModelConfig) llm.Gateway
}

type modelService struct {
	repo    repositories.ModelRepository
	vault   *crypto.Vault
	factory llm.GatewayFactory
	logger  *zap.Logger
}

// NewModelService creates a new model service.
func NewModelService(
	repo repositories.ModelRepository,
	vault *crypto.Vault,
	factory llm.GatewayFactory,
	logger *zap.Logger,
) ModelService {
	return &modelService{
		repo:    repo,
		vault:   vault,
		factory: factory,
		logger:  logger.Named("model"),
	}
}

var _ ModelService = (*modelService)(nil)

func (s *modelService) Create(ctx context.Context, input *ModelInput) (*models.ModelConfig, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: model is required", apperrors.ErrInvalidInput)
	}

	m := &models.ModelConfig{IsActive: true, Temperature: models.DefaultTemperature}
	applyModelInput(m, input)
	m.APIKey = s.vault.Encrypt(input.APIKey)
	m.ApplyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("Created model",
		zap.String("id", m.ID.String()),
		zap.String("name", m.Name),
		zap.String("provider", m.Provider),
		zap.Bool("default", m.IsDefault))

	return m, nil
}

func (s *modelService) Get(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error) {
	return s.repo.Get(ctx, id)
}

func (s *modelService) GetByName(ctx context.Context, name string) (*models.ModelConfig, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *modelService) GetDefault(ctx context.Context) (*models.ModelConfig, error) {
	return s.repo.GetDefault(ctx)
}

func (s *modelService) List(ctx context.Context) ([]*models.ModelConfig, error) {
	return s.repo.List(ctx)
}

func (s *modelService) Update(ctx context.Context, id uuid.UUID, input *ModelInput) (*models.ModelConfig, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: model is required", apperrors.ErrInvalidInput)
	}

	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyModelInput(m, input)
	if input.APIKey != "" && input.APIKey != models.PasswordPlaceholder {
		m.APIKey = s.vault.Encrypt(input.APIKey)
	}
	m.ApplyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("Updated model", zap.String("id", id.String()), zap.Bool("default", m.IsDefault))
	return m, nil
}

func (s *modelService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted model", zap.String("id", id.String()))
	return nil
}

func (s *modelService) SetDefault(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetDefault(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Default model changed", zap.String("id", id.String()))
	return nil
}

func (s *modelService) TestConnection(ctx context.Context, req *ModelTestRequest) (*ModelTestResult, error) {
	var gateway llm.Gateway

	switch {
	case req != nil && req.ID != nil:
		m, err := s.repo.Get(ctx, *req.ID)
		if err != nil {
			return nil, err
		}
		gateway = s.Gateway(m)
	case req != nil && req.Inline != nil:
		if strings.TrimSpace(req.Inline.Provider) == "" || strings.TrimSpace(req.Inline.ModelName) == "" {
			return nil, fmt.Errorf("%w: provider and model_name are required", apperrors.ErrInvalidInput)
		}
		gateway = s.factory.Create(llm.GatewayConfig{
			Provider:   req.Inline.Provider,
			Model:      req.Inline.ModelName,
			APIKey:     req.Inline.APIKey,
			APIBase:    req.Inline.APIBase,
			APIVersion: req.Inline.APIVersion,
		})
	default:
		return nil, fmt.Errorf("%w: id or config is required", apperrors.ErrInvalidInput)
	}

	if _, ok := gateway.(*llm.SimulatedGateway); ok {
		return &ModelTestResult{
			Success:   false,
			Simulated: true,
			Message:   "未配置API密钥，当前使用模拟响应",
			ErrorType: string(llm.ErrorTypeAuth),
		}, nil
	}

	if err := gateway.TestConnection(ctx); err != nil {
		s.logger.Warn("Model connection test failed",
			zap.String("provider", gateway.Provider()),
			zap.String("model", gateway.Model()),
			zap.Error(err))
		return &ModelTestResult{
			Success:   false,
			Message:   err.Error(),
			ErrorType: string(llm.GetErrorType(err)),
		}, nil
	}

	return &ModelTestResult{Success: true, Message: "连接成功"}, nil
}

func (s *modelService) Gateway(m *models.ModelConfig) llm.Gateway {
	apiKey, status := s.vault.DecryptWithStatus(m.APIKey)
	if status == crypto.Degraded {
		// The default credential is a database password, never an API key.
		s.logger.Warn("Model API key could not be decrypted, falling back to simulated responses",
			zap.String("model_id", m.ID.String()),
			zap.String("name", m.Name))
		apiKey = ""
	}

	return s.factory.Create(llm.GatewayConfig{
		Provider:   m.Provider,
		Model:      m.ModelName,
		APIKey:     apiKey,
		APIBase:    m.APIBase,
		APIVersion: m.APIVersion,
	})
}

func applyModelInput(m *models.ModelConfig, input *ModelInput) {
	m.Name = strings.TrimSpace(input.Name)
	m.Provider = strings.ToLower(strings.TrimSpace(input.Provider))
	m.ModelName = strings.TrimSpace(input.ModelName)
	m.APIBase = strings.TrimSpace(input.APIBase)
	m.APIVersion = strings.TrimSpace(input.APIVersion)
	m.MaxTokens = input.MaxTokens
	m.IsDefault = input.IsDefault
	if input.Temperature != nil {
		m.Temperature = *input.Temperature
	}
	if input.IsActive != nil {
		m.IsActive = *input.IsActive
	}
}
