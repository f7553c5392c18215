package mcp

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/logging"
	"github.com/wenshu-inc/wenshu-engine/pkg/mcp/tools"
)

// Security levels attached to tool call events.
const (
	SecurityNormal  = "normal"
	SecurityWarning = "warning"
)

// ToolCallEvent describes one finished tool call.
type ToolCallEvent struct {
	Tool          string
	Params        map[string]any
	Successful    bool
	ErrorCode     string
	ErrorMessage  string
	Duration      time.Duration
	SecurityLevel string
}

// AuditLogger logs every MCP tool call with sanitized parameters and timing.
// Calls rejected by the read-only gate are logged at WARN.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	event := a.buildEvent(id, req)
	event.Successful = result == nil || !result.IsError
	if !event.Successful {
		if resp, ok := decodeErrorResult(result); ok {
			event.ErrorCode = resp.Code
			event.ErrorMessage = resp.Message
		}
	}
	classifySecurity(event)
	a.record(event)
}

func (a *AuditLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	event := a.buildEvent(id, req)
	event.ErrorMessage = logging.SanitizeError(err)
	a.record(event)
}

func (a *AuditLogger) buildEvent(id any, req *mcplib.CallToolRequest) *ToolCallEvent {
	start := time.Now()
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		start = v.(time.Time)
	}
	return &ToolCallEvent{
		Tool:          req.Params.Name,
		Params:        sanitizeParams(req.Params.Arguments),
		Duration:      time.Since(start),
		SecurityLevel: SecurityNormal,
	}
}

func (a *AuditLogger) record(event *ToolCallEvent) {
	fields := []zap.Field{
		zap.String("tool", event.Tool),
		zap.Any("params", event.Params),
		zap.Bool("successful", event.Successful),
		zap.Duration("duration", event.Duration),
		zap.String("security_level", event.SecurityLevel),
	}
	if event.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", event.ErrorCode))
	}
	if event.ErrorMessage != "" {
		fields = append(fields, zap.String("error", event.ErrorMessage))
	}

	switch {
	case event.SecurityLevel == SecurityWarning:
		a.logger.Warn("MCP tool call rejected", fields...)
	case event.Successful:
		a.logger.Info("MCP tool call", fields...)
	default:
		a.logger.Info("MCP tool call failed", fields...)
	}
}

// classifySecurity flags calls that tried to run a non read-only statement
// or pass a malformed identifier.
func classifySecurity(event *ToolCallEvent) {
	switch event.ErrorCode {
	case tools.CodeUnsafeQuery:
		event.SecurityLevel = SecurityWarning
	case tools.CodeInvalidParameters:
		if strings.Contains(event.ErrorMessage, "injection") {
			event.SecurityLevel = SecurityWarning
		}
	}
}

func decodeErrorResult(result *mcplib.CallToolResult) (tools.ErrorResponse, bool) {
	var resp tools.ErrorResponse
	for _, c := range result.Content {
		text, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(text.Text), &resp); err == nil && resp.Error {
			return resp, true
		}
	}
	return resp, false
}

// maxParamSize bounds string parameters in log entries.
const maxParamSize = 2048

// sqlStringLiteralPattern matches SQL string literals including doubled quotes.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

var sensitiveKeywords = []string{"password", "secret", "token", "key", "credential"}

// sanitizeParams redacts sensitive keys, truncates long strings and hides
// literal values inside SQL parameters.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return logging.RedactedText
		}
	}

	switch val := value.(type) {
	case string:
		val = logging.TruncateString(val, maxParamSize)
		if isSQLParam(lower) {
			val = sqlStringLiteralPattern.ReplaceAllString(val, "'***'")
		}
		return val
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

func isSQLParam(lowerKey string) bool {
	return lowerKey == "sql" || lowerKey == "query" || strings.HasSuffix(lowerKey, "_sql") || strings.HasSuffix(lowerKey, "_query")
}
