package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wenshu-inc/wenshu-engine/pkg/services"
)

type healthResult struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Datasources *int   `json:"datasources,omitempty"`
	Connected   *int   `json:"connected,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server. When
// datasources is non-nil the result also counts registered and connected
// datasources from their last recorded status.
func RegisterHealthTool(s *server.MCPServer, version string, datasources services.DatasourceService) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version}

		if datasources != nil {
			all, err := datasources.List(ctx)
			if err != nil {
				result.Status = "degraded"
			} else {
				total, connected := len(all), 0
				for _, ds := range all {
					if ds.IsConnected() {
						connected++
					}
				}
				result.Datasources = &total
				result.Connected = &connected
			}
		}

		return jsonResult(result)
	})
}
