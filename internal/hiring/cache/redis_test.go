package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(NewRedisClient(mr.Addr(), "", 0), "", ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, 0)
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "unpopulated cache")

	col := models.Collection{Jobs: []models.Job{testJob("job-1", "cand-1")}, Version: "v1"}
	require.NoError(t, c.Store(ctx, col))
	assert.True(t, mr.Exists(DefaultRedisKey))

	got, ok, err := c.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, col, got)

	require.NoError(t, c.Clear(ctx))
	_, ok, err = c.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_EmptyCollectionIsPopulated(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCache(t, 0)

	require.NoError(t, c.Store(ctx, models.Collection{Version: models.EmptyVersion}))
	got, ok, err := c.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []models.Job{}, got.Jobs)
}

func TestRedisCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, time.Minute)

	require.NoError(t, c.Store(ctx, models.Collection{Version: "v"}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "expired entry reads as unpopulated")
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	c, mr := newTestRedisCache(t, 0)
	require.NoError(t, mr.Set(DefaultRedisKey, "garbage"))

	_, _, err := c.Load(context.Background())
	assert.Error(t, err)
}

func TestSynchronizer_SharedRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	remote := newMemRemote(testJob("job-1"))

	first := NewSynchronizer(NewRedisCache(NewRedisClient(mr.Addr(), "", 0), "", 0), remote, fastOptions(), zaptest.NewLogger(t))
	second := NewSynchronizer(NewRedisCache(NewRedisClient(mr.Addr(), "", 0), "", 0), remote, fastOptions(), zaptest.NewLogger(t))

	_, err := first.UpsertCandidate(ctx, "job-1", models.Candidate{ID: "cand-1", Name: "Ada"})
	require.NoError(t, err)

	job, err := second.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, job.Candidates, 1, "instances share the cached copy")

	first.Wait()
	_, loads, _ := remote.snapshot()
	assert.Equal(t, 1, loads)
}
