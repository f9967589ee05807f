package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"flagstone-assistant/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "history.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Exchange{}))
	return db
}

func TestExchangeRepositoryListRecent(t *testing.T) {
	repo := NewExchangeRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, &model.Exchange{
			Question:  q,
			Answer:    "answer " + q,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Question)
	assert.Equal(t, "second", recent[1].Question)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestExchangeRepositoryDefaultLimit(t *testing.T) {
	repo := NewExchangeRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &model.Exchange{Question: "q", Answer: "a"}))

	recent, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
	assert.NotZero(t, recent[0].ID)
	assert.False(t, recent[0].CreatedAt.IsZero())
}
