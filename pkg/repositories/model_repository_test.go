//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/testhelpers"
)

func newTestModel(name string) *models.ModelConfig {
	return &models.ModelConfig{
		Name:        name + "-" + uuid.NewString()[:8],
		Provider:    "deepseek",
		ModelName:   "deepseek-chat",
		APIKey:      "v1:cipher",
		Temperature: 0.7,
		MaxTokens:   4096,
		IsActive:    true,
	}
}

func countDefaults(t *testing.T, repo ModelRepository) int {
	t.Helper()
	list, err := repo.List(context.Background())
	require.NoError(t, err)
	n := 0
	for _, m := range list {
		if m.IsDefault {
			n++
		}
	}
	return n
}

func TestModelRepository_SingleDefault(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewModelRepository(engineDB.DB)
	ctx := context.Background()

	a := newTestModel("a")
	a.IsDefault = true
	require.NoError(t, repo.Create(ctx, a))
	t.Cleanup(func() { _ = repo.Delete(ctx, a.ID) })

	b := newTestModel("b")
	b.IsDefault = true
	require.NoError(t, repo.Create(ctx, b))
	t.Cleanup(func() { _ = repo.Delete(ctx, b.ID) })

	assert.Equal(t, 1, countDefaults(t, repo))
	def, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)

	require.NoError(t, repo.SetDefault(ctx, a.ID))
	assert.Equal(t, 1, countDefaults(t, repo))
	def, err = repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, def.ID)

	// Raising b through Update uses the same switch.
	b.IsDefault = true
	b.Temperature = 0.2
	require.NoError(t, repo.Update(ctx, b))
	assert.Equal(t, 1, countDefaults(t, repo))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
	assert.InDelta(t, 0.2, got.Temperature, 0.0001)

	assert.ErrorIs(t, repo.SetDefault(ctx, uuid.New()), apperrors.ErrNotFound)
	assert.Equal(t, 1, countDefaults(t, repo))
}

func TestModelRepository_DuplicateName(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewModelRepository(engineDB.DB)
	ctx := context.Background()

	m := newTestModel("dup")
	require.NoError(t, repo.Create(ctx, m))
	t.Cleanup(func() { _ = repo.Delete(ctx, m.ID) })

	dup := newTestModel("dup")
	dup.Name = m.Name
	assert.ErrorIs(t, repo.Create(ctx, dup), apperrors.ErrConflict)

	byName, err := repo.GetByName(ctx, m.Name)
	require.NoError(t, err)
	assert.Equal(t, m.ID, byName.ID)
}
