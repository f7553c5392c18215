package handlers

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/mcp"
)

// maxMCPBodyBytes caps a single JSON-RPC request.
const maxMCPBodyBytes = 1 << 20

// MCPHandler exposes the MCP server over streamable HTTP at /mcp.
// Only POST carries JSON-RPC; the SSE and session-delete verbs are not served.
type MCPHandler struct {
	transport *server.StreamableHTTPServer
	logger    *zap.Logger
}

func NewMCPHandler(mcpServer *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		transport: mcpServer.NewStreamableHTTPServer(),
		logger:    logger.Named("mcp-http"),
	}
}

func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /mcp", h.Serve)
	mux.HandleFunc("/mcp", h.methodNotAllowed)
}

// Serve hands a JSON-RPC request to the MCP transport.
func (h *MCPHandler) Serve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMCPBodyBytes)
	h.transport.ServeHTTP(w, r)
}

func (h *MCPHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Rejected non-POST MCP request", zap.String("method", r.Method))
	w.Header().Set("Allow", http.MethodPost)
	w.WriteHeader(http.StatusMethodNotAllowed)
}
