package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeTest exercises the Store contract against any implementation.
func storeTest(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("miss on absent key", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 0))
		v, ok, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v1"), v)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k1", []byte("v2"), 0))
		v, _, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), v)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
		_, ok, err := store.Get(ctx, "short")
		require.NoError(t, err)
		assert.True(t, ok)

		time.Sleep(25 * time.Millisecond)
		_, ok, err = store.Get(ctx, "short")
		require.NoError(t, err)
		assert.False(t, ok, "expired entry must read as a miss")
	})

	t.Run("invalidate by pattern", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "extract:/tmp/a.docx:1", []byte("a"), 0))
		require.NoError(t, store.Set(ctx, "extract:/tmp/b.docx:2", []byte("b"), 0))
		require.NoError(t, store.Set(ctx, "other:a", []byte("c"), 0))

		require.NoError(t, store.Invalidate(ctx, "extract:*"))

		_, ok, _ := store.Get(ctx, "extract:/tmp/a.docx:1")
		assert.False(t, ok)
		_, ok, _ = store.Get(ctx, "extract:/tmp/b.docx:2")
		assert.False(t, ok)
		_, ok, _ = store.Get(ctx, "other:a")
		assert.True(t, ok, "non-matching keys survive invalidation")
	})

	t.Run("invalidate everything", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "any", []byte("x"), 0))
		require.NoError(t, store.Invalidate(ctx, "*"))
		_, ok, _ := store.Get(ctx, "any")
		assert.False(t, ok)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeTest(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()
	storeTest(t, store)
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "durable", []byte("v"), 0))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Get(ctx, "durable")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}
