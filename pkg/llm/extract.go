package llm

import (
	"regexp"
	"strings"
)

var sqlBlockPattern = regexp.MustCompile("(?s)```sql\\s+(.*?)\\s+```")

// ExtractSQL returns the body of the first ```sql fenced block, trimmed.
func ExtractSQL(text string) (string, bool) {
	m := sqlBlockPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	sql := strings.TrimSpace(m[1])
	if sql == "" {
		return "", false
	}
	return sql, true
}
