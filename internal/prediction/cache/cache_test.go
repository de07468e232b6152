package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/retainly/retainly/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKey_EmbedsModelVersion(t *testing.T) {
	a := Key("churn", "v1", 42)
	b := Key("churn", "v2", 42)
	c := Key("clv", "v1", 42)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, Key("churn", "v1", 42))
}

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	m.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_ZeroTTLNotStored(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), 0)
	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_SetGet(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := config.Config{Cache: config.CacheConfig{
		Backend:   "redis",
		RedisAddr: srv.Addr(),
	}}
	r := NewRedis(cfg, zap.NewNop())
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	_, ok := r.Get(ctx, "missing")
	assert.False(t, ok)

	r.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestRedis_TTLExpiry(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := config.Config{Cache: config.CacheConfig{
		Backend:   "redis",
		RedisAddr: srv.Addr(),
	}}
	r := NewRedis(cfg, zap.NewNop())
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	r.Set(ctx, "k", []byte("v"), time.Minute)
	srv.FastForward(2 * time.Minute)

	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNew_SelectsBackend(t *testing.T) {
	log := zap.NewNop()

	mem := New(config.Config{Cache: config.CacheConfig{Backend: "memory"}}, log)
	assert.IsType(t, &Memory{}, mem)

	unknown := New(config.Config{Cache: config.CacheConfig{Backend: "bogus"}}, log)
	assert.IsType(t, &Memory{}, unknown)

	srv := miniredis.RunT(t)
	redisCache := New(config.Config{Cache: config.CacheConfig{Backend: "redis", RedisAddr: srv.Addr()}}, log)
	assert.IsType(t, &Redis{}, redisCache)
}
