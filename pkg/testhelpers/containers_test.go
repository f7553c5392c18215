//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTestDB_SeedsShopSchema(t *testing.T) {
	testDB := GetTestDB(t)
	ctx := context.Background()

	counts := map[string]int{"categories": 1, "products": 2}
	for table, want := range counts {
		var got int
		require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&got), table)
		assert.Equal(t, want, got, table)
	}

	var viewExists bool
	require.NoError(t, testDB.Pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.views WHERE table_name = 'product_names')").Scan(&viewExists))
	assert.True(t, viewExists)
}

func TestGetTestDB_Shared(t *testing.T) {
	assert.Same(t, GetTestDB(t), GetTestDB(t))
}

func TestGetEngineDB_MigrationsApplied(t *testing.T) {
	engineDB := GetEngineDB(t)
	ctx := context.Background()

	for _, table := range []string{"datasources", "model_configs", "conversations", "conversation_datasources", "messages"} {
		var exists bool
		err := engineDB.DB.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
			table).Scan(&exists)
		require.NoError(t, err, table)
		assert.True(t, exists, "expected table %s after migrations", table)
	}
}
