package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wenshu-inc/wenshu-engine/pkg/logging"
)

// OpenSQL opens a single-connection database/sql handle and pings it within timeout.
// The handle is closed again when the ping fails. Callers must Close a returned handle.
func OpenSQL(ctx context.Context, driverName, dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SQLConnection adapts *sql.DB to Connection.
type SQLConnection struct {
	DB *sql.DB
}

func (c *SQLConnection) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *SQLConnection) Close() error {
	return c.DB.Close()
}

// QueryStrings runs a query returning one string column per row.
func QueryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// QueryInTx runs a gated statement inside a transaction and reads at most
// maxRows+1 rows. The transaction is always rolled back, never committed, so
// a statement that slipped past the gate leaves nothing behind. opts may be
// nil for drivers without read-only transactions.
func QueryInTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, query string, maxRows int, convert ValueConverter) (*QueryResult, error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	return CollectRowsWith(rows, maxRows, convert)
}

// GroupedColumn is one (group, column) pair read from a catalog, e.g. an index
// name and one of its columns, in key order.
type GroupedColumn struct {
	Group  string
	Column string
}

// GroupColumns folds ordered (group, column) pairs into ordered groups.
func GroupColumns(pairs []GroupedColumn) (order []string, columns map[string][]string) {
	columns = make(map[string][]string)
	for _, p := range pairs {
		if _, seen := columns[p.Group]; !seen {
			order = append(order, p.Group)
		}
		columns[p.Group] = append(columns[p.Group], p.Column)
	}
	return order, columns
}

// TestWith runs the shared TestConnection sequence (connect plus table count).
// The error text is sanitized; the raw error is kept for classification.
func TestWith(ctx context.Context, c Connector) TestResult {
	count, err := c.TableCount(ctx)
	if err != nil {
		return TestResult{Success: false, Error: logging.SanitizeError(err), Err: err}
	}
	return TestResult{Success: true, TableCount: count}
}
