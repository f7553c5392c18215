package tools

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/logging"
)

// Error codes carried by tool error results.
const (
	CodeUnsafeQuery       = "unsafe_query"
	CodeNotFound          = "not_found"
	CodeInvalidParameters = "invalid_parameters"
	CodeConnectionError   = "connection_error"
	CodeSQLError          = "sql_error"
)

// ErrorResponse represents a structured error in tool results.
// Errors the caller can act on are returned as a successful tool call with
// IsError set so the client sees the details.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
//
// Do NOT use this for internal failures; those are returned as Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// ErrorResultFor maps a service error onto a tool error result. It returns nil
// for errors the caller cannot act on; those should be returned as Go errors.
func ErrorResultFor(err error) *mcp.CallToolResult {
	if err == nil {
		return nil
	}

	var connErr *apperrors.ConnectionError
	switch {
	case errors.Is(err, apperrors.ErrUnsafeQuery):
		return NewErrorResult(CodeUnsafeQuery, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult(CodeNotFound, err.Error())
	case errors.Is(err, apperrors.ErrInvalidInput):
		return NewErrorResult(CodeInvalidParameters, err.Error())
	case errors.As(err, &connErr):
		return NewErrorResultWithDetails(CodeConnectionError, connErr.FriendlyMessage, map[string]any{
			"error_type": connErr.ErrorType,
			"suggestion": connErr.Suggestion,
			"raw_error":  logging.SanitizeError(connErr.Cause),
		})
	case errors.Is(err, apperrors.ErrCredential), errors.Is(err, apperrors.ErrUnsupportedEngine):
		return NewErrorResult(CodeConnectionError, logging.SanitizeError(err))
	}

	return NewSQLErrorResult(err)
}

var (
	// "(SQLSTATE 42601)" as rendered by pgx
	sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)
	oraCodeRegex  = regexp.MustCompile(`ORA-(\d{5})`)
)

// Specific SQLSTATEs first, then whole classes.
var (
	sqlStateCodes = map[string]string{
		"42601": "syntax_error",
		"42703": "undefined_column",
		"42P01": "undefined_table",
		"42702": "ambiguous_column",
		"22012": "division_by_zero",
		"22P02": "invalid_input",
	}
	sqlStateClasses = map[string]string{
		"22": "data_exception",
		"23": "constraint_violation",
		"42": CodeSQLError,
		"44": "check_option_violation",
	}
	mysqlCodes = map[uint16]string{
		1064: "syntax_error",
		1054: "undefined_column",
		1146: "undefined_table",
		1052: "ambiguous_column",
	}
	mssqlCodes = map[int32]string{
		102:  "syntax_error",
		156:  "syntax_error",
		207:  "undefined_column",
		208:  "undefined_table",
		209:  "ambiguous_column",
		8134: "division_by_zero",
	}
	oracleCodes = map[string]string{
		"00900": "syntax_error",
		"00933": "syntax_error",
		"00904": "undefined_column",
		"00942": "undefined_table",
		"00918": "ambiguous_column",
		"01476": "division_by_zero",
	}
)

// IsSQLUserError reports whether err was caused by the statement itself (bad
// syntax, missing table or column, bad data) rather than by the server.
func IsSQLUserError(err error) bool {
	return SQLUserErrorCode(err) != ""
}

// SQLUserErrorCode returns a readable code for a SQL user error, or "".
// PostgreSQL, MySQL and SQL Server errors are read from the driver types;
// Oracle codes are read from the ORA- prefix.
func SQLUserErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return codeForSQLState(pgErr.Code)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlCodes[myErr.Number]
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return mssqlCodes[msErr.Number]
	}

	msg := err.Error()
	if m := sqlStateRegex.FindStringSubmatch(msg); m != nil {
		return codeForSQLState(m[1])
	}
	if m := oraCodeRegex.FindStringSubmatch(msg); m != nil {
		return oracleCodes[m[1]]
	}
	return ""
}

func codeForSQLState(state string) string {
	if code, ok := sqlStateCodes[state]; ok {
		return code
	}
	if len(state) < 2 {
		return ""
	}
	return sqlStateClasses[state[:2]]
}

// ExtractSQLErrorMessage returns the driver message without SQLSTATE noise.
func ExtractSQLErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Message
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Message
	}

	msg := err.Error()
	if idx := strings.Index(msg, " (SQLSTATE"); idx != -1 {
		msg = msg[:idx]
	}
	msg = strings.TrimPrefix(msg, "ERROR: ")
	return logging.SanitizeMessage(msg)
}

// NewSQLErrorResult returns an error result for SQL user errors, or nil.
//
//	result, err := deps.Datasources.ExecuteReadonlyQuery(ctx, id, query, maxRows, sqlgate.SurfaceMCP)
//	if err != nil {
//	    if errResult := NewSQLErrorResult(err); errResult != nil {
//	        return errResult, nil
//	    }
//	    return nil, err
//	}
func NewSQLErrorResult(err error) *mcp.CallToolResult {
	code := SQLUserErrorCode(err)
	if code == "" {
		return nil
	}
	return NewErrorResult(code, ExtractSQLErrorMessage(err))
}

// IsInputError reports whether err was caused by tool input rather than a
// server failure. Input errors are logged at DEBUG.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, apperrors.ErrUnsafeQuery) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrInvalidInput) ||
		IsSQLUserError(err)
}
