package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// ListTables returns user tables. Tables outside the configured schema are
// named "schema.table". Row counts come from sys.partitions.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name,
	    COALESCE(CAST(ep.value AS NVARCHAR(4000)), N'') AS table_comment,
	    COALESCE(SUM(p.rows), 0) AS row_count,
	    t.create_date,
	    t.modify_date
	FROM sys.tables t
	LEFT JOIN sys.partitions p ON t.object_id = p.object_id AND p.index_id IN (0, 1)
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = t.object_id AND ep.minor_id = 0 AND ep.class = 1 AND ep.name = N'MS_Description'
	WHERE t.is_ms_shipped = 0
	GROUP BY t.schema_id, t.name, ep.value, t.create_date, t.modify_date
	ORDER BY table_name, table_schema
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := make([]datasource.TableInfo, 0)
	for rows.Next() {
		var schema string
		var t datasource.TableInfo
		var created, modified sql.NullTime
		if err := rows.Scan(&schema, &t.Name, &t.Description, &t.RowCountEstimate, &created, &modified); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if schema != a.config.Schema {
			t.Name = schema + "." + t.Name
		}
		if created.Valid {
			t.CreatedAt = &created.Time
		}
		if modified.Valid {
			t.UpdatedAt = &modified.Time
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// TableSchema returns the columns of a table in ordinal order.
func (a *Adapter) TableSchema(ctx context.Context, tableName string) ([]datasource.ColumnInfo, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	schema, table, err := a.resolveTable(ctx, db, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE
	        WHEN tp.name IN ('varchar', 'char', 'varbinary', 'binary')
	            THEN tp.name + '(' + CASE WHEN c.max_length = -1 THEN 'max' ELSE CAST(c.max_length AS VARCHAR(10)) END + ')'
	        WHEN tp.name IN ('nvarchar', 'nchar')
	            THEN tp.name + '(' + CASE WHEN c.max_length = -1 THEN 'max' ELSE CAST(c.max_length / 2 AS VARCHAR(10)) END + ')'
	        WHEN tp.name IN ('decimal', 'numeric')
	            THEN tp.name + '(' + CAST(c.precision AS VARCHAR(10)) + ',' + CAST(c.scale AS VARCHAR(10)) + ')'
	        ELSE tp.name
	    END AS column_type,
	    c.is_nullable,
	    CAST(CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS BIT) AS is_primary_key,
	    dc.definition AS column_default,
	    COALESCE(CAST(ep.value AS NVARCHAR(4000)), N'') AS column_comment
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.class = 1 AND ep.name = N'MS_Description'
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`, sql.Named("schema", schema), sql.Named("table", table))
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

// ForeignKeys returns foreign keys declared on a table, columns in key order.
func (a *Adapter) ForeignKeys(ctx context.Context, tableName string) ([]datasource.ForeignKey, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	schema, table, err := a.resolveTable(ctx, db, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
	SET NOCOUNT ON;
	SELECT
	    fk.name AS constraint_name,
	    pc.name AS column_name,
	    SCHEMA_NAME(rt.schema_id) AS referred_schema,
	    rt.name AS referred_table,
	    rc.name AS referred_column
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.columns pc ON fkc.parent_object_id = pc.object_id AND fkc.parent_column_id = pc.column_id
	INNER JOIN sys.tables rt ON fkc.referenced_object_id = rt.object_id
	INNER JOIN sys.columns rc ON fkc.referenced_object_id = rc.object_id AND fkc.referenced_column_id = rc.column_id
	WHERE fk.parent_object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY fk.name, fkc.constraint_column_id
	`, sql.Named("schema", schema), sql.Named("table", table))
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	fks := make([]datasource.ForeignKey, 0)
	byName := make(map[string]int)
	for rows.Next() {
		var name, col, refSchema, refTable, refCol string
		if err := rows.Scan(&name, &col, &refSchema, &refTable, &refCol); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		if refSchema != a.config.Schema {
			refTable = refSchema + "." + refTable
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

// Indexes returns non-primary indexes on a table.
func (a *Adapter) Indexes(ctx context.Context, tableName string) ([]datasource.Index, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	schema, table, err := a.resolveTable(ctx, db, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
	SET NOCOUNT ON;
	SELECT i.name, c.name, i.is_unique
	FROM sys.indexes i
	INNER JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
	INNER JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
	WHERE i.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	  AND i.is_primary_key = 0
	  AND i.name IS NOT NULL
	  AND ic.is_included_column = 0
	ORDER BY i.name, ic.key_ordinal
	`, sql.Named("schema", schema), sql.Named("table", table))
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

// ListViews returns user view names.
func (a *Adapter) ListViews(ctx context.Context) ([]string, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	views, err := datasource.QueryStrings(ctx, db, `
	SELECT CASE WHEN SCHEMA_NAME(schema_id) = @schema THEN name ELSE SCHEMA_NAME(schema_id) + '.' + name END
	FROM sys.views
	WHERE is_ms_shipped = 0
	ORDER BY name
	`, sql.Named("schema", a.config.Schema))
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}
	return views, nil
}
