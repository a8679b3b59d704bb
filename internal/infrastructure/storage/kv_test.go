package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the behaviour every driver must share
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "cart", []byte(`[{"id":"p1","quantity":1}]`)))
	got, err := kv.Get(ctx, "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"p1","quantity":1}]`, string(got))

	require.NoError(t, kv.Set(ctx, "cart", []byte(`[]`)))
	got, err = kv.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	require.NoError(t, kv.Set(ctx, "customer", []byte(`{}`)))
	require.NoError(t, kv.Set(ctx, "customerAccessToken", []byte(`tok`)))
	require.NoError(t, kv.Delete(ctx, "customer", "customerAccessToken", "never-set"))

	_, err = kv.Get(ctx, "customer")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = kv.Get(ctx, "customerAccessToken")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Delete(ctx))
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	exerciseKV(t, kv)

	t.Run("values are copied", func(t *testing.T) {
		ctx := context.Background()
		buf := []byte("abc")
		require.NoError(t, kv.Set(ctx, "k", buf))
		buf[0] = 'z'
		got, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = kv.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"))
			}(i)
		}
		wg.Wait()
		assert.GreaterOrEqual(t, kv.Len(), 50)
	})
}

func TestRedisKV(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	kv, err := NewRedisKV(RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	exerciseKV(t, kv)

	t.Run("writes are visible in redis", func(t *testing.T) {
		require.NoError(t, kv.Set(context.Background(), "storefront:p1:cart", []byte("[]")))
		v, err := mr.Get("storefront:p1:cart")
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})

	t.Run("requires address", func(t *testing.T) {
		_, err := NewRedisKV(RedisOptions{})
		assert.Error(t, err)
	})
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	kv, err := NewSQLiteKV(path, nil)
	require.NoError(t, err)

	exerciseKV(t, kv)

	t.Run("survives reopen", func(t *testing.T) {
		require.NoError(t, kv.Set(context.Background(), "cart", []byte(`[{"id":"p9"}]`)))
		require.NoError(t, kv.Close())

		reopened, err := NewSQLiteKV(path, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = reopened.Close() })

		got, err := reopened.Get(context.Background(), "cart")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"p9"}]`, string(got))
	})
}

func TestNamespaced(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryKV()

	a := Namespaced(base, "storefront", "profile-a")
	b := Namespaced(base, "storefront", "profile-b")

	require.NoError(t, a.Set(ctx, "cart", []byte("A")))
	require.NoError(t, b.Set(ctx, "cart", []byte("B")))

	raw, err := base.Get(ctx, "storefront:profile-a:cart")
	require.NoError(t, err)
	assert.Equal(t, "A", string(raw))

	got, err := b.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "B", string(got))

	require.NoError(t, a.Delete(ctx, "cart"))
	_, err = a.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.Get(ctx, "cart")
	assert.NoError(t, err)

	require.NoError(t, a.Close())
	assert.Equal(t, 1, base.Len())

	assert.Same(t, base, Namespaced(base, "", "").(*MemoryKV))
}

func TestFactory(t *testing.T) {
	t.Run("memory driver", func(t *testing.T) {
		kv, err := NewFactory(config.StorageConfig{Driver: DriverMemory}).Create()
		require.NoError(t, err)
		assert.IsType(t, &MemoryKV{}, kv)
	})

	t.Run("redis driver", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		kv, err := NewFactory(config.StorageConfig{
			Driver: DriverRedis,
			Redis:  config.RedisConfig{Addr: mr.Addr()},
		}).Create()
		require.NoError(t, err)
		defer kv.Close()
		assert.IsType(t, &RedisKV{}, kv)
	})

	t.Run("sqlite driver", func(t *testing.T) {
		kv, err := NewFactory(config.StorageConfig{
			Driver: DriverSQLite,
			SQLite: config.SQLiteConfig{DSN: filepath.Join(t.TempDir(), "f.db")},
		}).Create()
		require.NoError(t, err)
		defer kv.Close()
		assert.IsType(t, &SQLiteKV{}, kv)
	})

	t.Run("unreachable redis without fallback", func(t *testing.T) {
		_, err := NewFactory(config.StorageConfig{
			Driver: DriverRedis,
			Redis:  config.RedisConfig{Addr: "127.0.0.1:1"},
		}).Create()
		assert.Error(t, err)
	})

	t.Run("unreachable redis with fallback", func(t *testing.T) {
		kv, err := NewFactory(config.StorageConfig{
			Driver: DriverRedis,
			Redis:  config.RedisConfig{Addr: "127.0.0.1:1"},
		}, WithMemoryFallback(true)).Create()
		require.NoError(t, err)
		assert.IsType(t, &MemoryKV{}, kv)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewFactory(config.StorageConfig{Driver: "localstorage"}).Create()
		assert.Error(t, err)
	})
}
