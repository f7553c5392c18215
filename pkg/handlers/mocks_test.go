package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/llm"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/services"
	sqlgate "github.com/wenshu-inc/wenshu-engine/pkg/sql"
)

// mockDatasourceService is a function-field mock of services.DatasourceService.
// Unset functions return a not-found error.
type mockDatasourceService struct {
	createFunc         func(ctx context.Context, input *services.DatasourceInput) (*models.Datasource, error)
	getFunc            func(ctx context.Context, id uuid.UUID) (*models.Datasource, error)
	listFunc           func(ctx context.Context) ([]*models.Datasource, error)
	updateFunc         func(ctx context.Context, id uuid.UUID, input *services.DatasourceInput) (*models.Datasource, error)
	deleteFunc         func(ctx context.Context, id uuid.UUID) error
	testConnectionFunc func(ctx context.Context, req *services.TestConnectionRequest) (*services.ConnectionTestResult, error)
	getSchemaFunc      func(ctx context.Context, id uuid.UUID, includeViews bool) (*datasource.SchemaSnapshot, error)
	sampleFunc         func(ctx context.Context, id uuid.UUID, table string, limit int) ([]map[string]any, error)
	sampleAllFunc      func(ctx context.Context, id uuid.UUID, limit int) (datasource.SampleRowSet, error)
	queryFunc          func(ctx context.Context, id uuid.UUID, query string, maxRows int, surface sqlgate.Surface) (*datasource.QueryResult, error)
	refreshAllFunc     func(ctx context.Context) []services.RefreshResult

	queryCalls  int
	lastSurface sqlgate.Surface
}

var _ services.DatasourceService = (*mockDatasourceService)(nil)

func (m *mockDatasourceService) Create(ctx context.Context, input *services.DatasourceInput) (*models.Datasource, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}
	return &models.Datasource{ID: uuid.New(), Name: input.Name, Type: input.Type}, nil
}

func (m *mockDatasourceService) Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, apperrors.NewNotFound("datasource", id.String())
}

func (m *mockDatasourceService) GetByName(ctx context.Context, name string) (*models.Datasource, error) {
	return nil, apperrors.NewNotFound("datasource", name)
}

func (m *mockDatasourceService) List(ctx context.Context) ([]*models.Datasource, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*models.Datasource{}, nil
}

func (m *mockDatasourceService) Update(ctx context.Context, id uuid.UUID, input *services.DatasourceInput) (*models.Datasource, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, input)
	}
	return nil, apperrors.NewNotFound("datasource", id.String())
}

func (m *mockDatasourceService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockDatasourceService) TestConnection(ctx context.Context, req *services.TestConnectionRequest) (*services.ConnectionTestResult, error) {
	if m.testConnectionFunc != nil {
		return m.testConnectionFunc(ctx, req)
	}
	return &services.ConnectionTestResult{Success: true, Message: "ok"}, nil
}

func (m *mockDatasourceService) GetSchema(ctx context.Context, id uuid.UUID, includeViews bool) (*datasource.SchemaSnapshot, error) {
	if m.getSchemaFunc != nil {
		return m.getSchemaFunc(ctx, id, includeViews)
	}
	return &datasource.SchemaSnapshot{}, nil
}

func (m *mockDatasourceService) GetSampleData(ctx context.Context, id uuid.UUID, table string, limit int) ([]map[string]any, error) {
	if m.sampleFunc != nil {
		return m.sampleFunc(ctx, id, table, limit)
	}
	return []map[string]any{}, nil
}

func (m *mockDatasourceService) GetAllSampleData(ctx context.Context, id uuid.UUID, limit int) (datasource.SampleRowSet, error) {
	if m.sampleAllFunc != nil {
		return m.sampleAllFunc(ctx, id, limit)
	}
	return datasource.SampleRowSet{}, nil
}

func (m *mockDatasourceService) ExecuteReadonlyQuery(ctx context.Context, id uuid.UUID, query string, maxRows int, surface sqlgate.Surface) (*datasource.QueryResult, error) {
	m.queryCalls++
	m.lastSurface = surface
	if m.queryFunc != nil {
		return m.queryFunc(ctx, id, query, maxRows, surface)
	}
	return &datasource.QueryResult{Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (m *mockDatasourceService) RefreshAll(ctx context.Context) []services.RefreshResult {
	if m.refreshAllFunc != nil {
		return m.refreshAllFunc(ctx)
	}
	return []services.RefreshResult{}
}

// mockModelService is a function-field mock of services.ModelService.
type mockModelService struct {
	createFunc     func(ctx context.Context, input *services.ModelInput) (*models.ModelConfig, error)
	getFunc        func(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error)
	getDefaultFunc func(ctx context.Context) (*models.ModelConfig, error)
	listFunc       func(ctx context.Context) ([]*models.ModelConfig, error)
	updateFunc     func(ctx context.Context, id uuid.UUID, input *services.ModelInput) (*models.ModelConfig, error)
	deleteFunc     func(ctx context.Context, id uuid.UUID) error
	setDefaultFunc func(ctx context.Context, id uuid.UUID) error
	testFunc       func(ctx context.Context, req *services.ModelTestRequest) (*services.ModelTestResult, error)

	setDefaultCalls int
}

var _ services.ModelService = (*mockModelService)(nil)

func (m *mockModelService) Create(ctx context.Context, input *services.ModelInput) (*models.ModelConfig, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}
	return &models.ModelConfig{ID: uuid.New(), Name: input.Name, Provider: input.Provider, ModelName: input.ModelName}, nil
}

func (m *mockModelService) Get(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, apperrors.NewNotFound("model", id.String())
}

func (m *mockModelService) GetByName(ctx context.Context, name string) (*models.ModelConfig, error) {
	return nil, apperrors.NewNotFound("model", name)
}

func (m *mockModelService) GetDefault(ctx context.Context) (*models.ModelConfig, error) {
	if m.getDefaultFunc != nil {
		return m.getDefaultFunc(ctx)
	}
	return nil, apperrors.NewNotFound("model", "default")
}

func (m *mockModelService) List(ctx context.Context) ([]*models.ModelConfig, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*models.ModelConfig{}, nil
}

func (m *mockModelService) Update(ctx context.Context, id uuid.UUID, input *services.ModelInput) (*models.ModelConfig, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, input)
	}
	return nil, apperrors.NewNotFound("model", id.String())
}

func (m *mockModelService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockModelService) SetDefault(ctx context.Context, id uuid.UUID) error {
	m.setDefaultCalls++
	if m.setDefaultFunc != nil {
		return m.setDefaultFunc(ctx, id)
	}
	return nil
}

func (m *mockModelService) TestConnection(ctx context.Context, req *services.ModelTestRequest) (*services.ModelTestResult, error) {
	if m.testFunc != nil {
		return m.testFunc(ctx, req)
	}
	return &services.ModelTestResult{Success: true, Simulated: true, Message: "ok"}, nil
}

func (m *mockModelService) Gateway(cfg *models.ModelConfig) llm.Gateway {
	return &llm.MockGateway{}
}

// mockConversationService is a function-field mock of services.ConversationService.
type mockConversationService struct {
	createFunc         func(ctx context.Context, title string, modelID *uuid.UUID, datasourceIDs []uuid.UUID) (*models.Conversation, error)
	getFunc            func(ctx context.Context, id uuid.UUID) (*services.ConversationDetail, error)
	listFunc           func(ctx context.Context) ([]*models.Conversation, error)
	deleteFunc         func(ctx context.Context, id uuid.UUID) error
	renameFunc         func(ctx context.Context, id uuid.UUID, title string) error
	setModelFunc       func(ctx context.Context, id uuid.UUID, modelID *uuid.UUID) error
	setDatasourcesFunc func(ctx context.Context, id uuid.UUID, datasourceIDs []uuid.UUID) error
	sendMessageFunc    func(ctx context.Context, id uuid.UUID, content string) (*services.SendMessageResult, error)
}

var _ services.ConversationService = (*mockConversationService)(nil)

func (m *mockConversationService) Create(ctx context.Context, title string, modelID *uuid.UUID, datasourceIDs []uuid.UUID) (*models.Conversation, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, title, modelID, datasourceIDs)
	}
	return &models.Conversation{ID: uuid.New(), Title: title, ModelID: modelID, DatasourceIDs: datasourceIDs}, nil
}

func (m *mockConversationService) Get(ctx context.Context, id uuid.UUID) (*services.ConversationDetail, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, apperrors.NewNotFound("conversation", id.String())
}

func (m *mockConversationService) List(ctx context.Context) ([]*models.Conversation, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*models.Conversation{}, nil
}

func (m *mockConversationService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockConversationService) Rename(ctx context.Context, id uuid.UUID, title string) error {
	if m.renameFunc != nil {
		return m.renameFunc(ctx, id, title)
	}
	return nil
}

func (m *mockConversationService) SetModel(ctx context.Context, id uuid.UUID, modelID *uuid.UUID) error {
	if m.setModelFunc != nil {
		return m.setModelFunc(ctx, id, modelID)
	}
	return nil
}

func (m *mockConversationService) SetDatasources(ctx context.Context, id uuid.UUID, datasourceIDs []uuid.UUID) error {
	if m.setDatasourcesFunc != nil {
		return m.setDatasourcesFunc(ctx, id, datasourceIDs)
	}
	return nil
}

func (m *mockConversationService) SendMessage(ctx context.Context, id uuid.UUID, content string) (*services.SendMessageResult, error) {
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(ctx, id, content)
	}
	return nil, apperrors.NewNotFound("conversation", id.String())
}
