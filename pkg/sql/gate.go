// Package sql holds the read-only query gate and statement validation used before
// any statement reaches a target database.
//
// The gate is lexical, not a parser: it checks the leading keyword and scans every
// identifier-shaped token for a forbidden keyword. It will reject some harmless
// statements, such as a SELECT on a column named "update", and that is accepted.
package sql

import (
	"strings"
	"unicode"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/metrics"
)

// Surface names the caller of the gate for metrics.
type Surface string

const (
	SurfaceChat Surface = "chat"
	SurfaceHTTP Surface = "http"
	SurfaceMCP  Surface = "mcp"
)

var forbiddenKeywords = map[string]struct{}{
	"insert":   {},
	"update":   {},
	"delete":   {},
	"drop":     {},
	"alter":    {},
	"truncate": {},
	"create":   {},
	"replace":  {},
}

// IsReadOnly reports whether a statement starts with SELECT and contains no
// forbidden keyword as a separate token.
func IsReadOnly(sqlQuery string) bool {
	return checkTokens(sqlQuery, "select")
}

// IsReadOnlyMCP is IsReadOnly that also accepts SHOW and DESC/DESCRIBE statements.
func IsReadOnlyMCP(sqlQuery string) bool {
	return checkTokens(sqlQuery, "select", "show", "desc", "describe")
}

// CheckReadOnly applies the gate for the given surface and returns an
// *apperrors.UnsafeQueryError when the statement is rejected.
func CheckReadOnly(sqlQuery string, surface Surface) error {
	ok := IsReadOnly(sqlQuery)
	if surface == SurfaceMCP {
		ok = IsReadOnlyMCP(sqlQuery)
	}
	if ok {
		return nil
	}

	metrics.Global().GateRejections.WithLabelValues(string(surface)).Inc()
	return &apperrors.UnsafeQueryError{
		Query:  sqlQuery,
		Reason: rejectionReason(sqlQuery),
	}
}

func checkTokens(sqlQuery string, allowedStarts ...string) bool {
	tokens := tokenize(sqlQuery)
	if len(tokens) == 0 {
		return false
	}

	startOK := false
	for _, s := range allowedStarts {
		if tokens[0] == s {
			startOK = true
			break
		}
	}
	if !startOK {
		return false
	}

	for _, tok := range tokens {
		if _, bad := forbiddenKeywords[tok]; bad {
			return false
		}
	}
	return true
}

func rejectionReason(sqlQuery string) string {
	tokens := tokenize(sqlQuery)
	if len(tokens) == 0 {
		return "empty statement"
	}
	for _, tok := range tokens {
		if _, bad := forbiddenKeywords[tok]; bad {
			return "contains forbidden keyword " + strings.ToUpper(tok)
		}
	}
	return "statement must start with SELECT"
}

// tokenize lowercases the statement and splits it on every rune that cannot be
// part of an unquoted identifier, so ";delete", "(drop" and newline variants
// all surface as separate tokens.
func tokenize(sqlQuery string) []string {
	lower := strings.ToLower(strings.TrimSpace(sqlQuery))
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}
