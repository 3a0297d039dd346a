package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*StatusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStatusCache(rdb, time.Minute), mr
}

func TestStatusCache_SetGetInvalidate(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := c.Set(ctx, "a", "CHECKED_OUT", 0)
	require.NoError(t, err)
	assert.True(t, stored)
	got, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "CHECKED_OUT", got)

	require.NoError(t, c.Invalidate(ctx, "a"))
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusCache_Expires(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	_, err := c.Set(ctx, "a", "AVAILABLE", 0)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusCache_Purge(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	_, err := c.Set(ctx, "a", "AVAILABLE", 0)
	require.NoError(t, err)
	_, err = c.Set(ctx, "b", "CHECKED_OUT", 0)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "b"))
	require.NoError(t, c.Purge(ctx))

	assert.False(t, mr.Exists(key("a")))
	assert.False(t, mr.Exists(key("b")))
	assert.False(t, mr.Exists(indexKey))

	gen, err := c.Generation(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestStatusCache_SetAfterInvalidateIsDropped(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	// a transition commits between the read and the write
	require.NoError(t, c.Invalidate(ctx, "a"))

	stored, err := c.Set(ctx, "a", "AVAILABLE", gen)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists(key("a")))

	gen, err = c.Generation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	stored, err = c.Set(ctx, "a", "CHECKED_OUT", gen)
	require.NoError(t, err)
	assert.True(t, stored)
	got, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "CHECKED_OUT", got)
}

func TestStatusCache_NilIsMiss(t *testing.T) {
	var c *StatusCache
	ctx := context.Background()

	assert.Nil(t, NewStatusCache(nil, time.Minute))
	stored, err := c.Set(ctx, "a", "AVAILABLE", 0)
	require.NoError(t, err)
	assert.False(t, stored)
	gen, err := c.Generation(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, gen)
	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Invalidate(ctx, "a"))
	require.NoError(t, c.Purge(ctx))
}
