package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/papertrade/internal/database"
	"github.com/aristath/papertrade/internal/domain"
	testingpkg "github.com/aristath/papertrade/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day1 = time.Date(2025, 6, 24, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)
)

func newTestRepository(t *testing.T, userIDs ...string) *Repository {
	db := testingpkg.NewTestDB(t, database.NamePortfolio)
	for _, id := range userIDs {
		_, err := db.Conn().Exec(
			"INSERT INTO users (id, username, cash, created_at) VALUES (?, ?, ?, ?)",
			id, id, 10000.0, time.Now().Unix(),
		)
		require.NoError(t, err)
	}
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_SaveAndGet(t *testing.T) {
	repo := newTestRepository(t, "u1")
	ctx := context.Background()

	snap := NewSnapshot("u1", day1, testingpkg.OldPrices)
	require.NoError(t, repo.Save(ctx, snap))

	loaded, err := repo.Get(ctx, "u1", day1.Add(13*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	exists, err := repo.Exists(ctx, "u1", day1)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "u1", day2)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_SaveNeverOverwrites(t *testing.T) {
	repo := newTestRepository(t, "u1")
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, NewSnapshot("u1", day1, testingpkg.OldPrices)))

	err := repo.Save(ctx, NewSnapshot("u1", day1, testingpkg.NewPrices))
	assert.ErrorIs(t, err, domain.ErrSnapshotExists)

	loaded, err := repo.Get(ctx, "u1", day1)
	require.NoError(t, err)
	assert.Equal(t, testingpkg.OldPrices, loaded.Prices)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newTestRepository(t, "u1")

	_, err := repo.Get(context.Background(), "u1", day1)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestRepository_List(t *testing.T) {
	repo := newTestRepository(t, "u1", "u2")
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, NewSnapshot("u1", day2, testingpkg.NewPrices)))
	require.NoError(t, repo.Save(ctx, NewSnapshot("u1", day1, testingpkg.OldPrices)))
	require.NoError(t, repo.Save(ctx, NewSnapshot("u2", day1, testingpkg.OldPrices)))

	snaps, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, day1, snaps[0].Date)
	assert.Equal(t, day2, snaps[1].Date)
	assert.Equal(t, testingpkg.NewPrices, snaps[1].Prices)

	none, err := repo.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
