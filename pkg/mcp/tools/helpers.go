package tools

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	val, _ := arguments(req)[key].(string)
	return trimString(val)
}

// getOptionalBool extracts an optional boolean parameter from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) (bool, bool) {
	val, ok := arguments(req)[key].(bool)
	return val, ok
}

// getOptionalInt extracts an optional integer argument. JSON numbers arrive as float64.
func getOptionalInt(req mcp.CallToolRequest, key string, defaultVal int) int {
	switch v := arguments(req)[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return defaultVal
}

// requireDatasourceID parses the datasource_id argument.
func requireDatasourceID(req mcp.CallToolRequest) (uuid.UUID, error) {
	raw, err := req.RequireString("datasource_id")
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: datasource_id is required", apperrors.ErrInvalidInput)
	}
	id, err := uuid.Parse(trimString(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: datasource_id %q is not a valid UUID", apperrors.ErrInvalidInput, raw)
	}
	return id, nil
}
