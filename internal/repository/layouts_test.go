package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kiosk-sync/internal/models"
	"kiosk-sync/internal/repository"
)

func TestLayoutRepository_UpsertRoundTrip(t *testing.T) {
	repo := repository.NewLayoutRepository(testDB(t), zap.NewNop())
	ctx := context.Background()

	layout := testLayout(uuid.New())
	require.NoError(t, repo.Upsert(ctx, layout))

	stored, err := repo.FindByID(ctx, layout.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, layout, stored)
}

func TestLayoutRepository_UpsertIsIdempotent(t *testing.T) {
	repo := repository.NewLayoutRepository(testDB(t), zap.NewNop())
	ctx := context.Background()

	layout := testLayout(uuid.New())
	require.NoError(t, repo.Upsert(ctx, layout))
	first, err := repo.FindByID(ctx, layout.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, layout))
	second, err := repo.FindByID(ctx, layout.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	ids, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestLayoutRepository_UpsertReplacesFullRow(t *testing.T) {
	repo := repository.NewLayoutRepository(testDB(t), zap.NewNop())
	ctx := context.Background()

	layout := testLayout(uuid.New())
	require.NoError(t, repo.Upsert(ctx, layout))

	updated := *layout
	updated.Name = "renamed"
	updated.Data = []byte(`{"widget":"LinearLayout"}`)
	updated.ModifiedAt = layout.ModifiedAt.Add(time.Minute)
	updated.Orientation = models.OrientationPortrait
	require.NoError(t, repo.Upsert(ctx, &updated))

	stored, err := repo.FindByID(ctx, layout.ID)
	require.NoError(t, err)
	assert.Equal(t, &updated, stored)
}

func TestLayoutRepository_FindMissingReturnsNil(t *testing.T) {
	repo := repository.NewLayoutRepository(testDB(t), zap.NewNop())

	stored, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLayoutRepository_DeleteMissingIsNoOp(t *testing.T) {
	repo := repository.NewLayoutRepository(testDB(t), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, uuid.New()))

	layout := testLayout(uuid.New())
	require.NoError(t, repo.Upsert(ctx, layout))
	require.NoError(t, repo.Delete(ctx, layout.ID))

	stored, err := repo.FindByID(ctx, layout.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
