package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status struct {
	IsLive      bool `json:"isLive"`
	ViewerCount int  `json:"viewerCount"`
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb)
}

func TestStore_StreamStatusAside(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestStore(t)

	calls := 0
	fetch := func(dest *status) func() error {
		return func() error {
			calls++
			*dest = status{IsLive: true, ViewerCount: 12}
			return nil
		}
	}

	var first status
	require.NoError(t, store.StreamStatusAside(ctx, 1, &first, time.Second, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists("stream:1:status"))

	var second status
	require.NoError(t, store.StreamStatusAside(ctx, 1, &second, time.Second, fetch(&second)))
	assert.Equal(t, 1, calls, "second read should be served from redis")
	assert.Equal(t, first, second)

	store.InvalidateStream(ctx, 1)
	assert.False(t, mr.Exists("stream:1:status"))

	var third status
	require.NoError(t, store.StreamStatusAside(ctx, 1, &third, time.Second, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestStore_InvalidationDuringFillIsNotStored(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestStore(t)

	// the fill reads a live row, then the stream ends and is invalidated before the fill stores
	var dest status
	require.NoError(t, store.StreamStatusAside(ctx, 1, &dest, time.Second, func() error {
		dest = status{IsLive: true, ViewerCount: 4}
		store.InvalidateStream(ctx, 1)
		return nil
	}))
	assert.True(t, dest.IsLive, "the caller still gets what it read")
	assert.False(t, mr.Exists("stream:1:status"))

	// the next fill runs after the write and is stored
	var next status
	require.NoError(t, store.StreamStatusAside(ctx, 1, &next, time.Second, func() error {
		next = status{}
		return nil
	}))
	assert.True(t, mr.Exists("stream:1:status"))

	var cached status
	found, err := store.GetJSON(ctx, "stream:1:status", &cached)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, cached.IsLive)
}

func TestStore_InvalidateStreamBumpsGeneration(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestStore(t)

	store.InvalidateStream(ctx, 9)
	store.InvalidateStream(ctx, 9)
	got, err := mr.Get("stream:9:gen")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
	assert.True(t, mr.TTL("stream:9:gen") > 0)
}

func TestStore_AsideGuardedExpires(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestStore(t)

	var dest status
	require.NoError(t, store.AsideGuarded(ctx, "k", "k:gen", &dest, 2*time.Second, func() error {
		dest = status{ViewerCount: 1}
		return nil
	}))
	mr.FastForward(3 * time.Second)
	assert.False(t, mr.Exists("k"))
}

func TestStore_AsideGuardedFetchError(t *testing.T) {
	_, store := newTestStore(t)
	var dest status
	err := store.AsideGuarded(context.Background(), "k", "k:gen", &dest, time.Second, func() error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}

func TestStore_NilClientPassthrough(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	calls := 0
	var dest status
	for i := 0; i < 2; i++ {
		require.NoError(t, store.AsideGuarded(ctx, "k", "k:gen", &dest, time.Second, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
	store.InvalidateStream(ctx, 1)
}

func TestStore_RedisDownFallsBackToFetch(t *testing.T) {
	mr, store := newTestStore(t)
	mr.Close()

	var dest status
	err := store.AsideGuarded(context.Background(), "k", "k:gen", &dest, time.Second, func() error {
		dest.ViewerCount = 3
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, dest.ViewerCount)
}

func TestInitRedis_Unreachable(t *testing.T) {
	assert.Nil(t, InitRedis("127.0.0.1:1"))
	assert.Nil(t, GetClient())

	mr := miniredis.RunT(t)
	rdb := InitRedis("redis://" + mr.Addr())
	require.NotNil(t, rdb)
	assert.Same(t, rdb, GetClient())
	_ = rdb.Close()
}
