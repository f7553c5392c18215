package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/llm"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
)

func TestModelService_CreateEncryptsAndDefaults(t *testing.T) {
	vault := newTestVault(t)
	repo := newMockModelRepository()
	svc := NewModelService(repo, vault, llm.NewFactory(time.Second, "", zap.NewNop()), zap.NewNop())

	m, err := svc.Create(context.Background(), &ModelInput{
		Name: "DeepSeek", Provider: "DeepSeek", ModelName: "deepseek-chat", APIKey: "sk-live", IsDefault: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "deepseek", m.Provider)
	assert.Equal(t, models.DefaultMaxTokens, m.MaxTokens)
	assert.InDelta(t, models.DefaultTemperature, m.Temperature, 0.0001)
	assert.True(t, m.IsActive)
	assert.NotEqual(t, "sk-live", repo.capturedModel.APIKey)
	assert.Equal(t, "sk-live", vault.Decrypt(repo.capturedModel.APIKey))
}

func TestModelService_CreateRejectsOutOfRange(t *testing.T) {
	svc := NewModelService(newMockModelRepository(), newTestVault(t), &llm.MockFactory{}, zap.NewNop())
	temp := 3.0

	_, err := svc.Create(context.Background(), &ModelInput{Name: "x", Provider: "openai", ModelName: "gpt", Temperature: &temp})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestModelService_UpdateEmptyKeyKeepsStored(t *testing.T) {
	vault := newTestVault(t)
	stored := &models.ModelConfig{
		Name: "gpt", Provider: "openai", ModelName: "gpt-4o", APIKey: vault.Encrypt("sk-old"),
		Temperature: 0.7, MaxTokens: 1024, IsActive: true,
	}
	repo := newMockModelRepository(stored)
	svc := NewModelService(repo, vault, &llm.MockFactory{}, zap.NewNop())
	ctx := context.Background()

	temp := 0.1
	_, err := svc.Update(ctx, stored.ID, &ModelInput{Name: "gpt", Provider: "openai", ModelName: "gpt-4o-mini", Temperature: &temp, MaxTokens: 2048})
	require.NoError(t, err)
	assert.Equal(t, "sk-old", vault.Decrypt(repo.capturedModel.APIKey))
	assert.Equal(t, "gpt-4o-mini", repo.capturedModel.ModelName)
	assert.InDelta(t, 0.1, repo.capturedModel.Temperature, 0.0001)

	_, err = svc.Update(ctx, stored.ID, &ModelInput{Name: "gpt", Provider: "openai", ModelName: "gpt-4o", APIKey: "sk-new", MaxTokens: 2048})
	require.NoError(t, err)
	assert.Equal(t, "sk-new", vault.Decrypt(repo.capturedModel.APIKey))
}

func TestModelService_SetDefaultIsExclusive(t *testing.T) {
	a := &models.ModelConfig{Name: "a", Provider: "openai", ModelName: "m", MaxTokens: 1, IsDefault: true}
	b := &models.ModelConfig{Name: "b", Provider: "openai", ModelName: "m", MaxTokens: 1}
	repo := newMockModelRepository(a, b)
	svc := NewModelService(repo, newTestVault(t), &llm.MockFactory{}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.SetDefault(ctx, b.ID))

	def, err := svc.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, m := range list {
		if m.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestModelService_TestConnection(t *testing.T) {
	vault := newTestVault(t)
	withKey := &models.ModelConfig{Name: "k", Provider: "openai", ModelName: "gpt", APIKey: vault.Encrypt("sk"), MaxTokens: 1}
	withoutKey := &models.ModelConfig{Name: "nk", Provider: "openai", ModelName: "gpt", MaxTokens: 1}
	repo := newMockModelRepository(withKey, withoutKey)

	gateway := llm.NewMockGateway()
	factory := &llm.MockFactory{Gateway: gateway}
	svc := NewModelService(repo, vault, factory, zap.NewNop())
	ctx := context.Background()

	res, err := svc.TestConnection(ctx, &ModelTestRequest{ID: &withKey.ID})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, gateway.TestConnectionCalls)
	assert.Equal(t, "sk", factory.LastConfig.APIKey)

	gateway.TestConnectionFunc = func(ctx context.Context) error {
		return llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, errors.New("401"))
	}
	res, err = svc.TestConnection(ctx, &ModelTestRequest{Inline: &ModelInput{Provider: "openai", ModelName: "gpt", APIKey: "bad"}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "auth", res.ErrorType)

	_, err = svc.TestConnection(ctx, &ModelTestRequest{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestModelService_TestConnectionSimulated(t *testing.T) {
	m := &models.ModelConfig{Name: "nk", Provider: "deepseek", ModelName: "deepseek-chat", MaxTokens: 1}
	repo := newMockModelRepository(m)
	svc := NewModelService(repo, newTestVault(t), llm.NewFactory(time.Second, "", zap.NewNop()), zap.NewNop())

	res, err := svc.TestConnection(context.Background(), &ModelTestRequest{ID: &m.ID})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Simulated)
}

func TestModelService_GatewayDegradedKeyIsSimulated(t *testing.T) {
	// Encrypted with a key this vault does not hold.
	other, err := newVaultWithKey("some-other-key")
	require.NoError(t, err)
	m := &models.ModelConfig{Name: "x", Provider: "openai", ModelName: "gpt", APIKey: other.Encrypt("sk"), MaxTokens: 1}

	svc := NewModelService(newMockModelRepository(m), newTestVault(t), llm.NewFactory(time.Second, "", zap.NewNop()), zap.NewNop())

	_, ok := svc.Gateway(m).(*llm.SimulatedGateway)
	assert.True(t, ok, "an undecryptable key must not be sent to the provider")
}
