package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisKV(client), mr
}

func TestRedisKV_SetGetDelete(t *testing.T) {
	kv, _ := newTestRedisKV(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "alert:state:room-101")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "alert:state:room-101", `{"light_state":"ON"}`, 0))

	val, err := kv.Get(ctx, "alert:state:room-101")
	require.NoError(t, err)
	assert.Equal(t, `{"light_state":"ON"}`, val)

	require.NoError(t, kv.Delete(ctx, "alert:state:room-101"))
	_, err = kv.Get(ctx, "alert:state:room-101")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_TTLExpires(t *testing.T) {
	kv, mr := newTestRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "query:stats:room-101", "cached", 3*time.Second))

	val, err := kv.Get(ctx, "query:stats:room-101")
	require.NoError(t, err)
	assert.Equal(t, "cached", val)

	mr.FastForward(4 * time.Second)

	_, err = kv.Get(ctx, "query:stats:room-101")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_ScanKeys(t *testing.T) {
	kv, _ := newTestRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "alert:state:room-101", "a", 0))
	require.NoError(t, kv.Set(ctx, "alert:state:room-204", "b", 0))
	require.NoError(t, kv.Set(ctx, "query:stats:room-101", "c", 0))

	keys, err := kv.ScanKeys(ctx, "alert:state:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alert:state:room-101", "alert:state:room-204"}, keys)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, kv.Set(ctx, "expiring", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err = kv.Get(ctx, "expiring")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "prefix:a", "1", 0))
	require.NoError(t, kv.Set(ctx, "prefix:b", "2", 0))
	keys, err := kv.ScanKeys(ctx, "prefix:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"prefix:a", "prefix:b"}, keys)

	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
