package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// SampleRows returns up to limit rows from a table in the configured schema.
func (a *Adapter) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	conn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", a.qualifiedTableName(table), limit)
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}
	defer rows.Close()

	result, err := collectRows(rows, 0)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// ExecuteQuery runs a gated statement inside a READ ONLY transaction,
// reading at most maxRows+1 rows.
func (a *Adapter) ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryResult, error) {
	conn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback(context.Background())

	rows, err := tx.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	return collectRows(rows, maxRows)
}

// collectRows mirrors datasource.CollectRows for pgx result sets.
func collectRows(rows pgx.Rows, maxRows int) (*datasource.QueryResult, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &datasource.QueryResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}

		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizePgValue(values[i])
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

// normalizePgValue handles pgx-native types before the shared normalization.
func normalizePgValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		dv, err := val.Value()
		if err != nil {
			return nil
		}
		return dv
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return datasource.NormalizeValue(v)
	}
}
