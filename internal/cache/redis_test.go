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

type cachedThing struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := client
	client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		client = prev
	})
	return mr
}

func TestGetSetJSON(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	var missing cachedThing
	found, err := GetJSON(ctx, "missing", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, "thing", cachedThing{Name: "x", Count: 3}, time.Minute))

	var got cachedThing
	found, err = GetJSON(ctx, "thing", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedThing{Name: "x", Count: 3}, got)
}

func TestAsideFetchesOnceThenServesFromCache(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			fetches++
			*dest = cachedThing{Name: "db", Count: fetches}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, "aside:1", &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, fetches)

	var second cachedThing
	require.NoError(t, Aside(ctx, "aside:1", &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, fetches, "second read must come from cache")
	assert.Equal(t, first, second)

	Invalidate(ctx, "aside:1")

	var third cachedThing
	require.NoError(t, Aside(ctx, "aside:1", &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, fetches, "invalidation forces a refetch")
}

func TestAsideWithoutRedisIsPassThrough(t *testing.T) {
	prev := client
	client = nil
	t.Cleanup(func() { client = prev })

	fetches := 0
	var dest cachedThing
	for i := 0; i < 2; i++ {
		err := Aside(context.Background(), "k", &dest, time.Minute, func() error {
			fetches++
			dest = cachedThing{Name: "direct"}
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, fetches)
	assert.Equal(t, "direct", dest.Name)
}
