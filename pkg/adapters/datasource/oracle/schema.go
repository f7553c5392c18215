package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
)

// ListTables returns tables of the owner. num_rows comes from optimizer
// statistics and is zero for never-analyzed tables.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT t.table_name, c.comments, NVL(t.num_rows, 0), o.created, o.last_ddl_time
		FROM all_tables t
		LEFT JOIN all_tab_comments c
			ON c.owner = t.owner AND c.table_name = t.table_name
		LEFT JOIN all_objects o
			ON o.owner = t.owner AND o.object_name = t.table_name AND o.object_type = 'TABLE'
		WHERE t.owner = :1
		ORDER BY t.table_name
	`, a.config.Owner)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := make([]datasource.TableInfo, 0)
	for rows.Next() {
		var t datasource.TableInfo
		var comment sql.NullString
		var created, modified sql.NullTime
		if err := rows.Scan(&t.Name, &comment, &t.RowCountEstimate, &created, &modified); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		t.Description = comment.String
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

// TableSchema returns the columns of a table in column_id order.
func (a *Adapter) TableSchema(ctx context.Context, table string) ([]datasource.ColumnInfo, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT
			col.column_name,
			col.data_type,
			col.data_length,
			col.data_precision,
			col.data_scale,
			col.nullable,
			CASE WHEN pk.column_name IS NOT NULL THEN 1 ELSE 0 END,
			col.data_default,
			cc.comments
		FROM all_tab_columns col
		LEFT JOIN all_col_comments cc
			ON cc.owner = col.owner AND cc.table_name = col.table_name AND cc.column_name = col.column_name
		LEFT JOIN (
			SELECT acc.column_name
			FROM all_constraints ac
			JOIN all_cons_columns acc
				ON acc.owner = ac.owner AND acc.constraint_name = ac.constraint_name
			WHERE ac.owner = :owner AND ac.table_name = :tname AND ac.constraint_type = 'P'
		) pk ON pk.column_name = col.column_name
		WHERE col.owner = :owner AND col.table_name = :tname
		ORDER BY col.column_id
	`, sql.Named("owner", a.config.Owner), sql.Named("tname", table))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make([]datasource.ColumnInfo, 0)
	for rows.Next() {
		var c datasource.ColumnInfo
		var length int64
		var precision, scale sql.NullInt64
		var nullable string
		var isPK int
		var def, comment sql.NullString
		if err := rows.Scan(&c.Name, &c.DataType, &length, &precision, &scale, &nullable, &isPK, &def, &comment); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.ColumnType = columnType(c.DataType, length, precision, scale)
		c.Nullable = nullable == "Y"
		c.IsPrimaryKey = isPK == 1
		if def.Valid {
			d := strings.TrimSpace(def.String)
			c.Default = &d
		}
		c.Comment = comment.String
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// columnType renders the declared type, e.g. VARCHAR2(100) or NUMBER(10,2).
func columnType(dataType string, length int64, precision, scale sql.NullInt64) string {
	switch dataType {
	case "VARCHAR2", "NVARCHAR2", "CHAR", "NCHAR", "RAW":
		return fmt.Sprintf("%s(%d)", dataType, length)
	case "NUMBER":
		if !precision.Valid {
			return dataType
		}
		if scale.Valid && scale.Int64 > 0 {
			return fmt.Sprintf("NUMBER(%d,%d)", precision.Int64, scale.Int64)
		}
		return fmt.Sprintf("NUMBER(%d)", precision.Int64)
	default:
		return dataType
	}
}

// ForeignKeys returns referential constraints on a table, columns in key order.
func (a *Adapter) ForeignKeys(ctx context.Context, table string) ([]datasource.ForeignKey, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT c.constraint_name, cc.column_name, rc.table_name, rc.column_name
		FROM all_constraints c
		JOIN all_cons_columns cc
			ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
		JOIN all_cons_columns rc
			ON rc.owner = c.r_owner AND rc.constraint_name = c.r_constraint_name AND rc.position = cc.position
		WHERE c.owner = :1 AND c.table_name = :2 AND c.constraint_type = 'R'
		ORDER BY c.constraint_name, cc.position
	`, a.config.Owner, table)
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

// Indexes returns indexes on a table, excluding the one backing the primary key.
func (a *Adapter) Indexes(ctx context.Context, table string) ([]datasource.Index, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT i.index_name, ic.column_name, i.uniqueness
		FROM all_indexes i
		JOIN all_ind_columns ic
			ON ic.index_owner = i.owner AND ic.index_name = i.index_name
		WHERE i.table_owner = :1 AND i.table_name = :2
		  AND NOT EXISTS (
			SELECT 1 FROM all_constraints pc
			WHERE pc.owner = i.table_owner AND pc.table_name = i.table_name
			  AND pc.constraint_type = 'P' AND pc.index_name = i.index_name
		  )
		ORDER BY i.index_name, ic.column_position
	`, a.config.Owner, table)
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	var pairs []datasource.GroupedColumn
	unique := make(map[string]bool)
	for rows.Next() {
		var name, col, uniqueness string
		if err := rows.Scan(&name, &col, &uniqueness); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		pairs = append(pairs, datasource.GroupedColumn{Group: name, Column: col})
		unique[name] = uniqueness == "UNIQUE"
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

// ListViews returns view names of the owner.
func (a *Adapter) ListViews(ctx context.Context) ([]string, error) {
	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	views, err := datasource.QueryStrings(ctx, db,
		`SELECT view_name FROM all_views WHERE owner = :1 ORDER BY view_name`, a.config.Owner)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}
	return views, nil
}
