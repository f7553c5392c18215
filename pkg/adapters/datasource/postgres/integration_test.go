//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
	"github.com/wenshu-inc/wenshu-engine/pkg/testhelpers"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)

	cfg, err := FromMap(map[string]any{
		"host":     testDB.Host,
		"port":     testDB.Port,
		"username": testDB.User,
		"password": testDB.Password,
		"database": testDB.Database,
		"ssl_mode": "disable",
	})
	require.NoError(t, err)
	return NewAdapter(cfg, datasource.Options{ConnectTimeout: 5 * time.Second, Logger: zap.NewNop()})
}

func TestAdapter_SchemaWalk(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	res := a.TestConnection(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.TableCount)

	tables, err := a.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "categories", tables[0].Name)
	assert.Equal(t, "products", tables[1].Name)
	assert.Equal(t, "商品", tables[1].Description)

	for _, table := range tables {
		cols, err := a.TableSchema(ctx, table.Name)
		require.NoError(t, err, table.Name)
		require.NotEmpty(t, cols)
		assert.Equal(t, "id", cols[0].Name)
		assert.True(t, cols[0].IsPrimaryKey)

		_, err = a.ForeignKeys(ctx, table.Name)
		require.NoError(t, err)
		_, err = a.Indexes(ctx, table.Name)
		require.NoError(t, err)
	}

	fks, err := a.ForeignKeys(ctx, "products")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, []string{"category_id"}, fks[0].Columns)
	assert.Equal(t, "categories", fks[0].ReferredTable)
	assert.Equal(t, []string{"id"}, fks[0].ReferredColumns)

	idx, err := a.Indexes(ctx, "products")
	require.NoError(t, err)
	require.Len(t, idx, 1)
	assert.Equal(t, "idx_products_category", idx[0].Name)
	assert.False(t, idx[0].Unique)

	views, err := a.ListViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"product_names"}, views)
}

func TestAdapter_SampleAndQuery(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	rows, err := a.SampleRows(ctx, "products", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0], "price")

	result, err := a.ExecuteQuery(ctx, "SELECT category_id, COUNT(*) AS total FROM products GROUP BY category_id", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"category_id", "total"}, result.Columns)
	assert.False(t, result.Truncated)
	assert.Equal(t, int64(2), result.Rows[0]["total"])

	result, err = a.ExecuteQuery(ctx, "SELECT id FROM products ORDER BY id", 1)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Len(t, result.Rows, 1)
	assert.Equal(t, 2, result.TotalRows)

	_, err = a.ExecuteQuery(ctx, "DELETE FROM products", 10)
	assert.Error(t, err, "read-only transaction must reject writes")
}
