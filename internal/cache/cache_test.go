package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestAside_FetchesOnceThenServesFromRedis(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	fetch := func(dest *profile) func() error {
		return func() error {
			calls++
			*dest = profile{ID: 7, Name: "hal"}
			return nil
		}
	}

	var first profile
	require.NoError(t, c.Aside(ctx, UserKey(7), &first, UserTTL, fetch(&first)))
	var second profile
	require.NoError(t, c.Aside(ctx, UserKey(7), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "hal", second.Name)
	assert.True(t, mr.Exists("user:7"))

	mr.FastForward(UserTTL + time.Second)
	assert.False(t, mr.Exists("user:7"))
}

func TestAside_DoesNotCacheErrors(t *testing.T) {
	c, mr := newTestCache(t)
	var p profile
	err := c.Aside(context.Background(), UserKey(1), &p, UserTTL, func() error { return errors.New("db down") })
	assert.Error(t, err)
	assert.False(t, mr.Exists("user:1"))
}

func TestNilCacheIsPassThrough(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	found, err := c.GetJSON(ctx, "k", &profile{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.SetJSON(ctx, "k", profile{}, time.Minute))
	c.Invalidate(ctx, "k")

	calls := 0
	require.NoError(t, c.Aside(ctx, "k", &profile{}, time.Minute, func() error { calls++; return nil }))
	require.NoError(t, c.Aside(ctx, "k", &profile{}, time.Minute, func() error { calls++; return nil }))
	assert.Equal(t, 2, calls)
}

func TestAside_DegradesWhenRedisIsDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	var p profile
	err := c.Aside(context.Background(), UserKey(3), &p, UserTTL, func() error {
		p = profile{ID: 3}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(3), p.ID)
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, CategoriesKey, []string{"a"}, CategoriesTTL))
	require.NoError(t, c.SetJSON(ctx, UnreadCountKey(4), 2, UnreadCountTTL))

	c.Invalidate(ctx, CategoriesKey, UnreadCountKey(4))
	assert.False(t, mr.Exists(CategoriesKey))
	assert.False(t, mr.Exists("notifications:unread:4"))
}

func TestOptions(t *testing.T) {
	opts, err := Options("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = Options("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	_, err = Options("redis://%zz")
	assert.Error(t, err)
}
