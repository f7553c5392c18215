package datasource

import (
	"context"
	"time"
)

// Connection is a live session with a target database. Callers must Close it.
type Connection interface {
	Ping(ctx context.Context) error
	Close() error
}

// Connector is the uniform capability surface over one target database.
// Every method opens its own connection, bounded by the connect timeout, and
// closes it before returning. Implementations hold no open resources.
type Connector interface {
	// Type returns the canonical engine type, e.g. "mysql".
	Type() string

	// Connect opens a session. The caller owns the returned Connection.
	Connect(ctx context.Context) (Connection, error)

	// TableCount returns the number of user tables.
	TableCount(ctx context.Context) (int, error)

	// ListTables returns user tables ordered by name.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// TableSchema returns the columns of a table ordered by ordinal position.
	TableSchema(ctx context.Context, table string) ([]ColumnInfo, error)

	// ForeignKeys returns the foreign keys declared on a table.
	ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)

	// Indexes returns the indexes declared on a table.
	Indexes(ctx context.Context, table string) ([]Index, error)

	// ListViews returns view names ordered by name.
	ListViews(ctx context.Context) ([]string, error)

	// SampleRows returns up to limit rows from a table, values normalized.
	SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error)

	// ExecuteQuery runs a statement that has already passed the read-only gate
	// and returns at most maxRows rows.
	ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) (*QueryResult, error)

	// TestConnection connects and counts tables. It never returns an error;
	// failures are reported in the result.
	TestConnection(ctx context.Context) TestResult

	// QuoteIdentifier quotes a table or column name for this engine.
	QuoteIdentifier(name string) string
}

// TableInfo describes a table as listed by the engine.
type TableInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// RowCountEstimate is exact on MySQL and Oracle (statistics permitting) and an
	// estimate from catalog statistics on PostgreSQL and SQL Server.
	RowCountEstimate int64      `json:"row_count"`
	CreatedAt        *time.Time `json:"create_time,omitempty"`
	UpdatedAt        *time.Time `json:"update_time,omitempty"`
}

// ColumnInfo describes a column.
type ColumnInfo struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	ColumnType   string  `json:"column_type"`
	Nullable     bool    `json:"nullable"`
	IsPrimaryKey bool    `json:"primary_key"`
	Default      *string `json:"default"`
	Comment      string  `json:"comment"`
}

// ForeignKey describes a foreign key constraint.
type ForeignKey struct {
	Name            string   `json:"name"`
	Columns         []string `json:"constrained_columns"`
	ReferredTable   string   `json:"referred_table"`
	ReferredColumns []string `json:"referred_columns"`
}

// Index describes an index.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// QueryResult holds the rows of a read-only query.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
	// TotalRows is the number of rows returned, or maxRows+1 when truncated
	// (the engine is not asked for an exact count).
	TotalRows int `json:"total_rows"`
}

// TestResult is the outcome of TestConnection.
type TestResult struct {
	Success    bool   `json:"success"`
	TableCount int    `json:"table_count"`
	Error      string `json:"error,omitempty"` // sanitized
	Err        error  `json:"-"`               // raw cause for classification
}

// TableSchema is one table in a SchemaSnapshot.
type TableSchema struct {
	Name        string       `json:"name"`
	Comment     string       `json:"comment"`
	Columns     []ColumnInfo `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
	Indexes     []Index      `json:"indices"`
	// Warnings names the parts that could not be read (foreign keys or
	// indexes). The table is still usable from its columns.
	Warnings []string `json:"warnings,omitempty"`
}

// ViewSchema is one view in a SchemaSnapshot.
type ViewSchema struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// SkippedTable records a table whose schema could not be read.
type SkippedTable struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// SchemaSnapshot is the schema of one datasource at one moment. It is never persisted.
type SchemaSnapshot struct {
	Tables  []TableSchema  `json:"tables"`
	Views   []ViewSchema   `json:"views,omitempty"`
	Skipped []SkippedTable `json:"skipped,omitempty"`
}

// SampleRowSet maps table name to sample rows.
type SampleRowSet map[string][]map[string]any

// PrimaryKeyColumns returns the names of primary key columns in order.
func PrimaryKeyColumns(columns []ColumnInfo) []string {
	var pks []string
	for _, c := range columns {
		if c.IsPrimaryKey {
			pks = append(pks, c.Name)
		}
	}
	return pks
}
