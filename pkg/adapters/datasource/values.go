package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// NormalizeValue converts a driver value into something JSON can carry unchanged:
// []byte becomes a UTF-8 string (invalid bytes replaced), time.Time becomes RFC 3339,
// and decimal-like driver types become their string form.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return strings.ToValidUTF8(string(val), "\uFFFD")
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(time.RFC3339Nano)
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case fmt.Stringer:
		// pgtype.Numeric, godror.Number, mssql.Decimal and UUID types
		return val.String()
	default:
		return val
	}
}

// NormalizeRow normalizes every value in a row in place and returns it.
func NormalizeRow(row map[string]any) map[string]any {
	for k, v := range row {
		row[k] = NormalizeValue(v)
	}
	return row
}

// ValueConverter rewrites a driver value before normalization. dbType is the
// driver's DatabaseTypeName for the column. Returning ok=false falls through to
// NormalizeValue.
type ValueConverter func(dbType string, v any) (converted any, ok bool)

// CollectRows reads rows from a database/sql result into a QueryResult.
// maxRows <= 0 means unbounded. When maxRows > 0 at most maxRows+1 rows are read,
// so truncation can be reported without draining the cursor.
func CollectRows(rows *sql.Rows, maxRows int) (*QueryResult, error) {
	return CollectRowsWith(rows, maxRows, nil)
}

// CollectRowsWith is CollectRows with an engine-specific value converter.
func CollectRowsWith(rows *sql.Rows, maxRows int, convert ValueConverter) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	dbTypes := make([]string, len(columns))
	if convert != nil {
		colTypes, err := rows.ColumnTypes()
		if err != nil {
			return nil, fmt.Errorf("get column types: %w", err)
		}
		for i, ct := range colTypes {
			dbTypes[i] = ct.DatabaseTypeName()
		}
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if convert != nil {
				if v, ok := convert(dbTypes[i], values[i]); ok {
					row[col] = v
					continue
				}
			}
			row[col] = NormalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	result.TotalRows = len(result.Rows)
	if result.Truncated {
		result.TotalRows = maxRows + 1
	}
	return result, nil
}

// ClampLimit bounds a row limit to [min, max], using def when limit <= 0.
func ClampLimit(limit, def, min, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
