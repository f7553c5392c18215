package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// SampleRows returns up to limit rows from a table.
func (a *Adapter) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", a.QuoteIdentifier(table), limit)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}
	defer rows.Close()

	result, err := datasource.CollectRows(rows, 0)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// ExecuteQuery runs a gated statement inside a READ ONLY transaction,
// reading at most maxRows+1 rows.
func (a *Adapter) ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryResult, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return datasource.QueryInTx(ctx, db, &sql.TxOptions{ReadOnly: true}, sqlQuery, maxRows, nil)
}
