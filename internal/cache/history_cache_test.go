package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flagstone-assistant/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, time.Minute, 5*time.Second), mr
}

func TestHistoryCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.GetRecent(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	want := []model.Exchange{{ID: 2, Question: "q2", Answer: "a2"}, {ID: 1, Question: "q1", Answer: "a1"}}
	require.NoError(t, c.SetRecent(ctx, want))

	got, hit, err := c.GetRecent(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
}

func TestHistoryCacheDirtyMarker(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetRecent(ctx, []model.Exchange{{ID: 1}}))

	require.NoError(t, c.MarkDirty(ctx))
	dirty, err := c.IsDirty(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)
	_, hit, err := c.GetRecent(ctx)
	require.NoError(t, err)
	assert.False(t, hit, "marking dirty drops the cached list")

	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty, "marker expires")

	require.NoError(t, c.MarkDirty(ctx))
	require.NoError(t, c.ClearDirty(ctx))
	dirty, err = c.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestHistoryCacheDirtyUntilEveryPendingExchangeIsPersisted(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkDirty(ctx))
	require.NoError(t, c.MarkDirty(ctx))

	require.NoError(t, c.ClearDirty(ctx))
	dirty, err := c.IsDirty(ctx)
	require.NoError(t, err)
	assert.True(t, dirty, "second exchange is still pending")

	require.NoError(t, c.ClearDirty(ctx))
	dirty, err = c.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, c.ClearDirty(ctx))
	dirty, err = c.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty, "extra releases do not go negative")
}

func TestHistoryCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetRecent(ctx, []model.Exchange{{ID: 1}}))

	mr.FastForward(2 * time.Minute)
	_, hit, err := c.GetRecent(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
}
