package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// ListTables returns base tables with comments, row counts and timestamps.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT
			TABLE_NAME,
			COALESCE(TABLE_COMMENT, ''),
			COALESCE(TABLE_ROWS, 0),
			CREATE_TIME,
			UPDATE_TIME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`, a.config.Database)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := make([]datasource.TableInfo, 0)
	for rows.Next() {
		var t datasource.TableInfo
		var created, updated sql.NullTime
		if err := rows.Scan(&t.Name, &t.Description, &t.RowCountEstimate, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if created.Valid {
			t.CreatedAt = &created.Time
		}
		if updated.Valid {
			t.UpdatedAt = &updated.Time
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// TableSchema returns the columns of a table in ordinal order.
func (a *Adapter) TableSchema(ctx context.Context, table string) ([]datasource.ColumnInfo, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			COLUMN_TYPE,
			IS_NULLABLE = 'YES',
			COLUMN_KEY = 'PRI',
			COLUMN_DEFAULT,
			COALESCE(COLUMN_COMMENT, '')
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, a.config.Database, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make([]datasource.ColumnInfo, 0)
	for rows.Next() {
		var c datasource.ColumnInfo
		var def sql.NullString
		if err := rows.Scan(&c.Name, &c.DataType, &c.ColumnType, &c.Nullable, &c.IsPrimaryKey, &def, &c.Comment); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if def.Valid {
			c.Default = &def.String
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// ForeignKeys returns foreign keys declared on a table.
func (a *Adapter) ForeignKeys(ctx context.Context, table string) ([]datasource.ForeignKey, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION
	`, a.config.Database, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	fks := make([]datasource.ForeignKey, 0)
	byName := make(map[string]int)
	for rows.Next() {
		var name, col, refTable, refCol string
		if err := rows.Scan(&name, &col, &refTable, &refCol); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		i, ok := byName[name]
		if !ok {
			fks = append(fks, datasource.ForeignKey{Name: name, ReferredTable: refTable})
			i = len(fks) - 1
			byName[name] = i
		}
		fks[i].Columns = append(fks[i].Columns, col)
		fks[i].ReferredColumns = append(fks[i].ReferredColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return fks, nil
}

// Indexes returns secondary indexes on a table. The primary key is reported
// through TableSchema, not here.
func (a *Adapter) Indexes(ctx context.Context, table string) ([]datasource.Index, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE = 0
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND INDEX_NAME <> 'PRIMARY'
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`, a.config.Database, table)
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	var pairs []datasource.GroupedColumn
	unique := make(map[string]bool)
	for rows.Next() {
		var name, col string
		var isUnique bool
		if err := rows.Scan(&name, &col, &isUnique); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		pairs = append(pairs, datasource.GroupedColumn{Group: name, Column: col})
		unique[name] = isUnique
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes: %w", err)
	}

	order, cols := datasource.GroupColumns(pairs)
	indexes := make([]datasource.Index, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, datasource.Index{Name: name, Columns: cols[name], Unique: unique[name]})
	}
	return indexes, nil
}

// ListViews returns view names in the configured schema.
func (a *Adapter) ListViews(ctx context.Context) ([]string, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	views, err := datasource.QueryStrings(ctx, db, `
		SELECT TABLE_NAME FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME
	`, a.config.Database)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}
	return views, nil
}
