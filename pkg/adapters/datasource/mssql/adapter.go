package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// Adapter provides SQL Server connectivity using SQL authentication.
type Adapter struct {
	config *Config
	opts   datasource.Options
	logger *zap.Logger
}

// NewAdapter creates a SQL Server adapter.
func NewAdapter(cfg *Config, opts datasource.Options) *Adapter {
	return &Adapter{
		config: cfg,
		opts:   opts,
		logger: opts.NamedLogger("mssql"),
	}
}

func (a *Adapter) Type() string { return "sqlserver" }

// open returns a fresh single-connection handle. Callers must close it.
func (a *Adapter) open(ctx context.Context) (*sql.DB, error) {
	connStr := a.config.ConnectionString(a.opts.Host(a.config.Host), a.opts.TimeoutSeconds())
	db, err := datasource.OpenSQL(ctx, "sqlserver", connStr, a.opts.Timeout())
	if err != nil {
		return nil, fmt.Errorf("connect to sql server: %w", err)
	}
	return db, nil
}

// Connect opens a session. The caller must close it.
func (a *Adapter) Connect(ctx context.Context) (datasource.Connection, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	return &datasource.SQLConnection{DB: db}, nil
}

// TestConnection connects and counts tables.
func (a *Adapter) TestConnection(ctx context.Context) datasource.TestResult {
	res := datasource.TestWith(ctx, a)
	if !res.Success {
		a.logger.Warn("Connection test failed",
			zap.String("host", a.config.Host),
			zap.Int("port", a.config.Port),
			zap.String("error", res.Error))
	}
	return res
}

// TableCount returns the number of user tables in the database.
func (a *Adapter) TableCount(ctx context.Context) (int, error) {
	db, err := a.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sys.tables WHERE is_ms_shipped = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tables: %w", err)
	}
	return count, nil
}

// QuoteIdentifier quotes a name the way QUOTENAME does.
func (a *Adapter) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// resolveTable returns the schema and bare name for a table reference.
// Unqualified names are looked up in INFORMATION_SCHEMA, preferring the
// configured schema, and fall back to it when not found.
func (a *Adapter) resolveTable(ctx context.Context, db *sql.DB, tableName string) (string, string, error) {
	if schema, table, ok := splitSchemaTable(tableName); ok {
		return schema, table, nil
	}

	var schema string
	err := db.QueryRowContext(ctx, `
		SELECT TOP (1) TABLE_SCHEMA
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_NAME = @table
		ORDER BY CASE WHEN TABLE_SCHEMA = @schema THEN 0 ELSE 1 END, TABLE_SCHEMA
	`, sql.Named("table", tableName), sql.Named("schema", a.config.Schema)).Scan(&schema)
	if err == sql.ErrNoRows {
		return a.config.Schema, tableName, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve schema for %s: %w", tableName, err)
	}
	return schema, tableName, nil
}

// Ensure Adapter implements Connector at compile time.
var _ datasource.Connector = (*Adapter)(nil)
