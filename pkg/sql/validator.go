package sql

import (
	"errors"
	"strings"
	"unicode"
)

// ErrMultipleStatements is returned when a statement still contains a
// semicolon after its trailing one is removed.
var ErrMultipleStatements = errors.New("不允许一次执行多条语句")

const blank = " \t\r\n"

// ValidateAndNormalize trims the statement, drops one trailing semicolon and
// rejects stacked statements. It runs after CheckReadOnly, so a statement
// reaching a connector is always a single read-only statement.
func ValidateAndNormalize(sqlQuery string) (string, error) {
	q := strings.Trim(sqlQuery, blank)
	q = strings.TrimSuffix(q, ";")
	q = strings.TrimRight(q, blank)

	if q != "" && splitsStatements(q) {
		return "", ErrMultipleStatements
	}
	return q, nil
}

// splitsStatements reports a semicolon outside literals, quoted identifiers
// and comments. The statement is scanned twice, once with MySQL rules
// (backslash escapes, # comments) and once with standard rules, because the
// two disagree about where a literal such as '\' ends. Either reading
// finding a separator rejects the statement.
func splitsStatements(q string) bool {
	return scanForSeparator(q, true) || scanForSeparator(q, false)
}

// scanForSeparator knows '...', "...", MySQL `...`, SQL Server [...], -- and
// /* */ comments. With backslashEscapes it follows MySQL: \x escapes, # comments,
// and -- only when followed by whitespace.
// A doubled quote closes and reopens the literal, which is equivalent.
func scanForSeparator(q string, backslashEscapes bool) bool {
	rs := []rune(q)
	var closer rune

	for i := 0; i < len(rs); i++ {
		c := rs[i]
		next, after := runeAt(rs, i+1), runeAt(rs, i+2)

		if closer != 0 {
			switch {
			case backslashEscapes && c == '\\' && closer != ']':
				i++
			case c == closer:
				closer = 0
			}
			continue
		}

		switch {
		case c == ';':
			return true
		case c == '\'' || c == '"' || c == '`':
			closer = c
		case c == '[':
			closer = ']'
		case c == '-' && next == '-' && (!backslashEscapes || after == 0 || unicode.IsSpace(after)),
			backslashEscapes && c == '#':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case c == '/' && next == '*':
			i += 2
			for i < len(rs) && !(rs[i] == '*' && i+1 < len(rs) && rs[i+1] == '/') {
				i++
			}
			i++
		}
	}
	return false
}

func runeAt(rs []rune, i int) rune {
	if i < len(rs) {
		return rs[i]
	}
	return 0
}
