package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/mcp"
)

func newTestMCPMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger := zap.NewNop()
	mcpServer := mcp.NewServer("wenshu-engine", "test-version", logger)
	mcpServer.RegisterDatasourceTools(&mockDatasourceService{}, "test-version")

	mux := http.NewServeMux()
	NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	return mux
}

func postMCP(t *testing.T, mux *http.ServeMux, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "2.0", response["jsonrpc"])
	return response
}

func TestMCPHandler_RejectsGET(t *testing.T) {
	mux := newTestMCPMux(t)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
}

func TestMCPHandler_ToolsList(t *testing.T) {
	response := postMCP(t, newTestMCPMux(t), `{"jsonrpc":"2.0","method":"tools/list","id":1}`)

	result, ok := response["result"].(map[string]any)
	require.True(t, ok, "expected result object, got %v", response)
	toolList, ok := result["tools"].([]any)
	require.True(t, ok)

	var names []string
	for _, tool := range toolList {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{
		"get_database_metadata",
		"get_sample_data",
		"execute_readonly_query",
		"health",
	}, names)
}

func TestMCPHandler_HealthTool(t *testing.T) {
	response := postMCP(t, newTestMCPMux(t), `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"health"},"id":2}`)

	var parsed struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	raw, err := json.Marshal(response)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &parsed))
	require.NotEmpty(t, parsed.Result.Content)

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(parsed.Result.Content[0].Text), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test-version", health.Version)
}
