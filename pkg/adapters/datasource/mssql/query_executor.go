package mssql

import (
	"context"
	"fmt"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// SampleRows returns up to limit rows using TOP.
func (a *Adapter) SampleRows(ctx context.Context, tableName string, limit int) ([]map[string]any, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	schema, table, err := a.resolveTable(ctx, db, tableName)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT TOP (%d) * FROM %s", limit, buildFullyQualifiedName(schema, table))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", tableName, err)
	}
	defer rows.Close()

	result, err := datasource.CollectRowsWith(rows, 0, convertValue)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// ExecuteQuery runs a gated statement and reads at most maxRows+1 rows.
// The driver has no read-only transaction mode, so the statement runs in a
// transaction that is always rolled back. T-SQL DML and DDL are transactional,
// so an EXEC or SELECT INTO that got past the gate is undone.
func (a *Adapter) ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryResult, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return datasource.QueryInTx(ctx, db, nil, sqlQuery, maxRows, convertValue)
}
