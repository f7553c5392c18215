package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/services"
	sqlgate "github.com/wenshu-inc/wenshu-engine/pkg/sql"
)

// mockDatasourceService implements services.DatasourceService with function fields.
type mockDatasourceService struct {
	listFunc          func(ctx context.Context) ([]*models.Datasource, error)
	getSchemaFunc     func(ctx context.Context, id uuid.UUID, includeViews bool) (*datasource.SchemaSnapshot, error)
	getSampleDataFunc func(ctx context.Context, id uuid.UUID, table string, limit int) ([]map[string]any, error)
	getAllSampleFunc  func(ctx context.Context, id uuid.UUID, limit int) (datasource.SampleRowSet, error)
	executeFunc       func(ctx context.Context, id uuid.UUID, query string, maxRows int, surface sqlgate.Surface) (*datasource.QueryResult, error)

	sampleCalls   int
	executeCalls  int
	lastLimit     int
	lastMaxRows   int
	lastSurface   sqlgate.Surface
	lastViewsFlag bool
}

var _ services.DatasourceService = (*mockDatasourceService)(nil)

func (m *mockDatasourceService) Create(ctx context.Context, input *services.DatasourceInput) (*models.Datasource, error) {
	return nil, nil
}

func (m *mockDatasourceService) Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	return nil, nil
}

func (m *mockDatasourceService) GetByName(ctx context.Context, name string) (*models.Datasource, error) {
	return nil, nil
}

func (m *mockDatasourceService) List(ctx context.Context) ([]*models.Datasource, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockDatasourceService) Update(ctx context.Context, id uuid.UUID, input *services.DatasourceInput) (*models.Datasource, error) {
	return nil, nil
}

func (m *mockDatasourceService) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockDatasourceService) TestConnection(ctx context.Context, req *services.TestConnectionRequest) (*services.ConnectionTestResult, error) {
	return &services.ConnectionTestResult{Success: true}, nil
}

func (m *mockDatasourceService) GetSchema(ctx context.Context, id uuid.UUID, includeViews bool) (*datasource.SchemaSnapshot, error) {
	m.lastViewsFlag = includeViews
	if m.getSchemaFunc != nil {
		return m.getSchemaFunc(ctx, id, includeViews)
	}
	return &datasource.SchemaSnapshot{}, nil
}

func (m *mockDatasourceService) GetSampleData(ctx context.Context, id uuid.UUID, table string, limit int) ([]map[string]any, error) {
	m.sampleCalls++
	m.lastLimit = limit
	if m.getSampleDataFunc != nil {
		return m.getSampleDataFunc(ctx, id, table, limit)
	}
	return []map[string]any{}, nil
}

func (m *mockDatasourceService) GetAllSampleData(ctx context.Context, id uuid.UUID, limit int) (datasource.SampleRowSet, error) {
	m.sampleCalls++
	m.lastLimit = limit
	if m.getAllSampleFunc != nil {
		return m.getAllSampleFunc(ctx, id, limit)
	}
	return datasource.SampleRowSet{}, nil
}

func (m *mockDatasourceService) ExecuteReadonlyQuery(ctx context.Context, id uuid.UUID, query string, maxRows int, surface sqlgate.Surface) (*datasource.QueryResult, error) {
	m.executeCalls++
	m.lastMaxRows = maxRows
	m.lastSurface = surface
	if m.executeFunc != nil {
		return m.executeFunc(ctx, id, query, maxRows, surface)
	}
	return &datasource.QueryResult{Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (m *mockDatasourceService) RefreshAll(ctx context.Context) []services.RefreshResult {
	return nil
}

// toolCallResponse is the subset of a tools/call JSON-RPC response the tests read.
type toolCallResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callTool sends a tools/call request through HandleMessage.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolCallResponse {
	t.Helper()

	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	result := s.HandleMessage(context.Background(), request)
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var resp toolCallResponse
	require.NoError(t, json.Unmarshal(resultBytes, &resp))
	return resp
}

// errorPayload parses the structured error of an IsError result.
func errorPayload(t *testing.T, resp toolCallResponse) ErrorResponse {
	t.Helper()
	require.Nil(t, resp.Error)
	require.True(t, resp.Result.IsError, "expected a tool error result")
	require.NotEmpty(t, resp.Result.Content)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &errResp))
	return errResp
}
