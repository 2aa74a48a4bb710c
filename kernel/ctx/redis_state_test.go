package ctx

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisState(t *testing.T) *RedisStateAccess {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStateAccess(client)
}

func TestRedisStateAccessStoreAndLoadRoundtrip(t *testing.T) {
	r := newTestRedisState(t)
	ctx := context.Background()

	require.NoError(t, r.Store(ctx, Global, "greeting", "hello"))

	v, ok, err := r.Load(ctx, Global, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestRedisStateAccessLoadMissingKey(t *testing.T) {
	r := newTestRedisState(t)
	_, ok, err := r.Load(context.Background(), Global, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStateAccessDeleteRemovesKey(t *testing.T) {
	r := newTestRedisState(t)
	ctx := context.Background()
	require.NoError(t, r.Store(ctx, Global, "x", 1))
	require.NoError(t, r.Delete(ctx, Global, "x"))

	_, ok, err := r.Load(ctx, Global, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStateAccessListKeysReturnsScopedKeysOnly(t *testing.T) {
	r := newTestRedisState(t)
	ctx := context.Background()
	require.NoError(t, r.Store(ctx, Global, "wf:1:output", "a"))
	require.NoError(t, r.Store(ctx, Global, "wf:2:output", "b"))
	require.NoError(t, r.Store(ctx, Session("s1"), "wf:1:output", "c"))

	keys, err := r.ListKeys(ctx, Global, "wf:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"wf:1:output", "wf:2:output"}, keys)
}
