package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// ListTables returns tables in the configured schema. Row counts come from
// pg_class.reltuples and are estimates.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	conn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, `
		SELECT
			c.relname,
			COALESCE(obj_description(c.oid, 'pg_class'), ''),
			GREATEST(c.reltuples, 0)::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND n.nspname = $1
		  AND NOT c.relispartition
		ORDER BY c.relname
	`, a.config.Schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := make([]datasource.TableInfo, 0)
	for rows.Next() {
		var t datasource.TableInfo
		if err := rows.Scan(&t.Name, &t.Description, &t.RowCountEstimate); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// TableSchema returns the columns of a table in ordinal order.
// Primary keys come from pg_index.indisprimary, which also catches keys
// created as unique indexes by ORMs.
func (a *Adapter) TableSchema(ctx context.Context, table string) ([]datasource.ColumnInfo, error) {
	conn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, `
		SELECT
			a.attname,
			c.data_type,
			format_type(a.atttypid, a.atttypmod),
			c.is_nullable = 'YES',
			EXISTS (
				SELECT 1 FROM pg_index ix
				WHERE ix.indrelid = t.oid
				  AND ix.indisprimary
				  AND a.attnum = ANY(ix.indkey::int2[])
			),
			c.column_default,
			COALESCE(col_description(t.oid, a.attnum), '')
		FROM information_schema.columns c
		JOIN pg_namespace n ON n.nspname = c.table_schema
		JOIN pg_class t ON t.relname = c.table_name AND t.relnamespace = n.oid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attname = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`, a.config.Schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make([]datasource.ColumnInfo, 0)
	for rows.Next() {
		var c datasource.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.ColumnType, &c.Nullable, &c.IsPrimaryKey, &c.Default, &c.Comment); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// ForeignKeys returns foreign keys declared on a table, columns in key order.
func (a *Adapter) ForeignKeys(ctx context.Context, table string) ([]datasource.ForeignKey, error) {
	conn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, `
		SELECT con.conname, a.attname, rt.relname, ra.attname
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class rt ON rt.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refnum
		WHERE con.contype = 'f' AND n.nspname = $1 AND t.relname = $2
		ORDER BY con.conname, k.ord
	`, a.config.Schema, table)
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

// Indexes returns non-primary indexes on a table.
func (a *Adapter) Indexes(ctx context.Context, table string) ([]datasource.Index, error) {
	conn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, `
		SELECT i.relname, a.attname, ix.indisunique
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE NOT ix.indisprimary AND n.nspname = $1 AND t.relname = $2
		ORDER BY i.relname, k.ord
	`, a.config.Schema, table)
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
	conn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, `
		SELECT table_name FROM information_schema.views
		WHERE table_schema = $1
		ORDER BY table_name
	`, a.config.Schema)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}

	views, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect views: %w", err)
	}
	return views, nil
}
