package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/logging"
	"github.com/wenshu-inc/wenshu-engine/pkg/services"
	sqlgate "github.com/wenshu-inc/wenshu-engine/pkg/sql"
)

const (
	// DefaultSampleLimit is the get_sample_data row count when none is given.
	DefaultSampleLimit = 3

	// DefaultMaxRows is the execute_readonly_query row bound when none is given.
	DefaultMaxRows = 100
)

// DatasourceToolDeps contains dependencies for the datasource tools.
type DatasourceToolDeps struct {
	Datasources services.DatasourceService
	Logger      *zap.Logger
}

// RegisterDatasourceTools registers the schema, sample and query tools.
func RegisterDatasourceTools(s *server.MCPServer, deps *DatasourceToolDeps) {
	registerGetDatabaseMetadataTool(s, deps)
	registerGetSampleDataTool(s, deps)
	registerExecuteReadonlyQueryTool(s, deps)
}

func registerGetDatabaseMetadataTool(s *server.MCPServer, deps *DatasourceToolDeps) {
	tool := mcp.NewTool(
		"get_database_metadata",
		mcp.WithDescription(
			"Get the schema of a datasource: tables with columns, primary keys, foreign keys and indices. "+
				"Tables whose columns could not be read are listed under skipped; "+
				"a table missing only keys or indices carries warnings instead. "+
				"Call this before writing SQL for execute_readonly_query.",
		),
		mcp.WithString(
			"datasource_id",
			mcp.Required(),
			mcp.Description("ID of the datasource"),
		),
		mcp.WithBoolean(
			"include_views",
			mcp.Description("If true, also list views (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := requireDatasourceID(req)
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		includeViews, _ := getOptionalBool(req, "include_views")

		snapshot, err := deps.Datasources.GetSchema(ctx, id, includeViews)
		if err != nil {
			return toolFailure(deps.Logger, "get_database_metadata", err)
		}

		return jsonResult(snapshot)
	})
}

func registerGetSampleDataTool(s *server.MCPServer, deps *DatasourceToolDeps) {
	tool := mcp.NewTool(
		"get_sample_data",
		mcp.WithDescription(
			"Get sample rows from a datasource. With a table, returns rows of that table. "+
				"Without a table, returns a few rows of every table.",
		),
		mcp.WithString(
			"datasource_id",
			mcp.Required(),
			mcp.Description("ID of the datasource"),
		),
		mcp.WithString(
			"table",
			mcp.Description("Table name (optional)"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Rows per table (default: 3, max: 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := requireDatasourceID(req)
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		limit := getOptionalInt(req, "limit", DefaultSampleLimit)
		table := getOptionalString(req, "table")

		if table == "" {
			set, err := deps.Datasources.GetAllSampleData(ctx, id, limit)
			if err != nil {
				return toolFailure(deps.Logger, "get_sample_data", err)
			}
			return jsonResult(map[string]any{"tables": set})
		}

		if err := sqlgate.CheckIdentifier(table); err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		rows, err := deps.Datasources.GetSampleData(ctx, id, table, limit)
		if err != nil {
			return toolFailure(deps.Logger, "get_sample_data", err)
		}
		return jsonResult(map[string]any{"table": table, "rows": rows})
	})
}

func registerExecuteReadonlyQueryTool(s *server.MCPServer, deps *DatasourceToolDeps) {
	tool := mcp.NewTool(
		"execute_readonly_query",
		mcp.WithDescription(
			"Execute a read-only SQL statement (SELECT, SHOW, DESC) against a datasource. "+
				"Any other statement is rejected with code unsafe_query.",
		),
		mcp.WithString(
			"datasource_id",
			mcp.Required(),
			mcp.Description("ID of the datasource"),
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("SQL statement to execute"),
		),
		mcp.WithNumber(
			"max_rows",
			mcp.Description("Max rows to return (default: 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := requireDatasourceID(req)
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		query, err := req.RequireString("query")
		if err != nil || trimString(query) == "" {
			return NewErrorResult(CodeInvalidParameters, "query is required"), nil
		}

		maxRows := getOptionalInt(req, "max_rows", DefaultMaxRows)
		if maxRows < 1 {
			maxRows = DefaultMaxRows
		}

		result, err := deps.Datasources.ExecuteReadonlyQuery(ctx, id, query, maxRows, sqlgate.SurfaceMCP)
		if err != nil {
			return toolFailure(deps.Logger, "execute_readonly_query", err)
		}
		return jsonResult(result)
	})
}

// toolFailure converts actionable errors into error results and returns the rest as Go errors.
func toolFailure(logger *zap.Logger, tool string, err error) (*mcp.CallToolResult, error) {
	if IsInputError(err) {
		logger.Debug("Tool input rejected", zap.String("tool", tool), zap.String("error", logging.SanitizeError(err)))
	} else {
		logger.Error("Tool failed", zap.String("tool", tool), zap.String("error", logging.SanitizeError(err)))
	}

	if result := ErrorResultFor(err); result != nil {
		return result, nil
	}
	return nil, fmt.Errorf("%s failed: %s", tool, logging.SanitizeError(err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
