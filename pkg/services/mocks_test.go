package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/crypto"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/repositories"
)

// Test encryption key (32 bytes, base64 encoded) - same as crypto/vault_test.go
const testEncryptionKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

func newTestVault(t *testing.T) *crypto.Vault {
	t.Helper()
	v, err := crypto.NewVault(crypto.VaultConfig{PrimaryKey: testEncryptionKey, DefaultCredential: "default-pw"}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}
	return v
}

// mockDatasourceRepository is an in-memory DatasourceRepository.
type mockDatasourceRepository struct {
	mu          sync.Mutex
	datasources map[uuid.UUID]*models.Datasource

	createErr error
	listErr   error

	statusCalls int
	lastStatus  string
	lastCount   int
	capturedDS  *models.Datasource
}

func newMockDatasourceRepository(dss ...*models.Datasource) *mockDatasourceRepository {
	m := &mockDatasourceRepository{datasources: make(map[uuid.UUID]*models.Datasource)}
	for _, ds := range dss {
		if ds.ID == uuid.Nil {
			ds.ID = uuid.New()
		}
		m.datasources[ds.ID] = ds
	}
	return m
}

var _ repositories.DatasourceRepository = (*mockDatasourceRepository)(nil)

func (m *mockDatasourceRepository) Create(ctx context.Context, ds *models.Datasource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturedDS = ds
	if m.createErr != nil {
		return m.createErr
	}
	ds.ID = uuid.New()
	cp := *ds
	m.datasources[ds.ID] = &cp
	return nil
}

func (m *mockDatasourceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasources[id]
	if !ok {
		return nil, apperrors.NewNotFound("datasource", id.String())
	}
	cp := *ds
	return &cp, nil
}

func (m *mockDatasourceRepository) GetByName(ctx context.Context, name string) (*models.Datasource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ds := range m.datasources {
		if ds.Name == name {
			cp := *ds
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFound("datasource", name)
}

func (m *mockDatasourceRepository) List(ctx context.Context) ([]*models.Datasource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*models.Datasource, 0, len(m.datasources))
	for _, ds := range m.datasources {
		cp := *ds
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockDatasourceRepository) Update(ctx context.Context, ds *models.Datasource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasources[ds.ID]; !ok {
		return apperrors.NewNotFound("datasource", ds.ID.String())
	}
	m.capturedDS = ds
	cp := *ds
	m.datasources[ds.ID] = &cp
	return nil
}

func (m *mockDatasourceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, tableCount int, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	m.lastStatus = status
	m.lastCount = tableCount
	if ds, ok := m.datasources[id]; ok {
		ds.ConnectionStatus = status
		ds.TableCount = tableCount
		ds.LastChecked = &checkedAt
	}
	return nil
}

func (m *mockDatasourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasources[id]; !ok {
		return apperrors.NewNotFound("datasource", id.String())
	}
	delete(m.datasources, id)
	return nil
}

// mockModelRepository is an in-memory ModelRepository.
type mockModelRepository struct {
	mu     sync.Mutex
	models map[uuid.UUID]*models.ModelConfig

	setDefaultCalls int
	capturedModel   *models.ModelConfig
}

func newMockModelRepository(ms ...*models.ModelConfig) *mockModelRepository {
	r := &mockModelRepository{models: make(map[uuid.UUID]*models.ModelConfig)}
	for _, m := range ms {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		r.models[m.ID] = m
	}
	return r
}

var _ repositories.ModelRepository = (*mockModelRepository)(nil)

func (r *mockModelRepository) Create(ctx context.Context, m *models.ModelConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capturedModel = m
	m.ID = uuid.New()
	if m.IsDefault {
		r.clearDefault()
	}
	cp := *m
	r.models[m.ID] = &cp
	return nil
}

func (r *mockModelRepository) Get(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[id]
	if !ok {
		return nil, apperrors.NewNotFound("model", id.String())
	}
	cp := *m
	return &cp, nil
}

func (r *mockModelRepository) GetByName(ctx context.Context, name string) (*models.ModelConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.models {
		if m.Name == name {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFound("model", name)
}

func (r *mockModelRepository) GetDefault(ctx context.Context) (*models.ModelConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.models {
		if m.IsDefault {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFound("model", "default")
}

func (r *mockModelRepository) List(ctx context.Context) ([]*models.ModelConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ModelConfig, 0, len(r.models))
	for _, m := range r.models {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *mockModelRepository) Update(ctx context.Context, m *models.ModelConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m.ID]; !ok {
		return apperrors.NewNotFound("model", m.ID.String())
	}
	r.capturedModel = m
	if m.IsDefault {
		r.clearDefault()
	}
	cp := *m
	r.models[m.ID] = &cp
	return nil
}

func (r *mockModelRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setDefaultCalls++
	m, ok := r.models[id]
	if !ok {
		return apperrors.NewNotFound("model", id.String())
	}
	r.clearDefault()
	m.IsDefault = true
	return nil
}

func (r *mockModelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[id]; !ok {
		return apperrors.NewNotFound("model", id.String())
	}
	delete(r.models, id)
	return nil
}

func (r *mockModelRepository) clearDefault() {
	for _, m := range r.models {
		m.IsDefault = false
	}
}

// mockConversationRepository is an in-memory ConversationRepository.
type mockConversationRepository struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]*models.Message

	lastListLimit int
}

func newMockConversationRepository() *mockConversationRepository {
	return &mockConversationRepository{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]*models.Message),
	}
}

var _ repositories.ConversationRepository = (*mockConversationRepository)(nil)

func (r *mockConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv.ID = uuid.New()
	cp := *conv
	r.conversations[conv.ID] = &cp
	return nil
}

func (r *mockConversationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, apperrors.NewNotFound("conversation", id.String())
	}
	cp := *c
	return &cp, nil
}

func (r *mockConversationRepository) List(ctx context.Context, limit int) ([]*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *mockConversationRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	return r.mutate(id, func(c *models.Conversation) { c.Title = title })
}

func (r *mockConversationRepository) SetModel(ctx context.Context, id uuid.UUID, modelID *uuid.UUID) error {
	return r.mutate(id, func(c *models.Conversation) { c.ModelID = modelID })
}

func (r *mockConversationRepository) SetDatasources(ctx context.Context, id uuid.UUID, datasourceIDs []uuid.UUID) error {
	return r.mutate(id, func(c *models.Conversation) { c.DatasourceIDs = datasourceIDs })
}

func (r *mockConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return apperrors.NewNotFound("conversation", id.String())
	}
	delete(r.conversations, id)
	delete(r.messages, id)
	return nil
}

func (r *mockConversationRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[msg.ConversationID]; !ok {
		return apperrors.NewNotFound("conversation", msg.ConversationID.String())
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], msg)
	return nil
}

func (r *mockConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastListLimit = limit
	msgs := r.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]*models.Message(nil), msgs...), nil
}

func (r *mockConversationRepository) mutate(id uuid.UUID, fn func(*models.Conversation)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return apperrors.NewNotFound("conversation", id.String())
	}
	fn(c)
	return nil
}

func newVaultWithKey(key string) (*crypto.Vault, error) {
	return crypto.NewVault(crypto.VaultConfig{PrimaryKey: key, FallbackKey: key + "-fallback"}, zap.NewNop())
}
