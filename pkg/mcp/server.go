// Package mcp exposes the datasource operations to MCP clients.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/mcp/tools"
	"github.com/wenshu-inc/wenshu-engine/pkg/services"
)

const instructions = "Read-only access to the datasources registered in wenshu-engine. " +
	"Call get_database_metadata before writing SQL, then execute_readonly_query. " +
	"Only SELECT, SHOW, DESC, DESCRIBE and EXPLAIN statements are accepted."

type Server struct {
	mcp    *server.MCPServer
	audit  *AuditLogger
	logger *zap.Logger
}

// NewServer builds an MCP server whose tool calls are recorded by an AuditLogger.
// Panics inside a tool handler are recovered into JSON-RPC errors.
func NewServer(name, version string, logger *zap.Logger) *Server {
	audit := NewAuditLogger(logger)

	return &Server{
		mcp: server.NewMCPServer(name, version,
			server.WithInstructions(instructions),
			server.WithToolCapabilities(true),
			server.WithHooks(audit.Hooks()),
			server.WithRecovery(),
		),
		audit:  audit,
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterDatasourceTools adds the metadata, sample, query and health tools.
func (s *Server) RegisterDatasourceTools(datasources services.DatasourceService, version string) {
	deps := &tools.DatasourceToolDeps{Datasources: datasources, Logger: s.logger}
	tools.RegisterDatasourceTools(s.mcp, deps)
	tools.RegisterHealthTool(s.mcp, version, datasources)

	s.logger.Info("Registered MCP tools",
		zap.Strings("tools", []string{"get_database_metadata", "get_sample_data", "execute_readonly_query", "health"}))
}

// NewStreamableHTTPServer returns a stateless HTTP transport. Routing to /mcp is
// left to the caller's mux.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}
