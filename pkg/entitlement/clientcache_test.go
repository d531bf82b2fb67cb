package entitlement_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulcerts/entitlement/pkg/entitlement"
)

func TestClientCache(t *testing.T) {
	t.Run("missing file loads as not entitled", func(t *testing.T) {
		cache := entitlement.NewClientCache(filepath.Join(t.TempDir(), "cache.json"))
		require.NoError(t, cache.Load())
		assert.False(t, cache.Entitled())
	})

	t.Run("corrupt file loads as not entitled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte("not-json{"), 0o600))

		cache := entitlement.NewClientCache(path)
		require.NoError(t, cache.Load())
		assert.False(t, cache.Entitled())
	})

	t.Run("mark entitled persists across loads", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")

		cache := entitlement.NewClientCache(path)
		require.NoError(t, cache.Load())
		require.NoError(t, cache.MarkEntitled())
		assert.True(t, cache.Entitled())

		reloaded := entitlement.NewClientCache(path)
		require.NoError(t, reloaded.Load())
		assert.True(t, reloaded.Entitled())
	})

	t.Run("reconcile corrects stale cached value", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")

		cache := entitlement.NewClientCache(path)
		require.NoError(t, cache.MarkEntitled())

		// Server revoked entitlement behind the cache's back.
		require.NoError(t, cache.Reconcile(false))
		assert.False(t, cache.Entitled())

		reloaded := entitlement.NewClientCache(path)
		require.NoError(t, reloaded.Load())
		assert.False(t, reloaded.Entitled())
	})

	t.Run("reconcile grants missed entitlement", func(t *testing.T) {
		cache := entitlement.NewClientCache(filepath.Join(t.TempDir(), "cache.json"))
		require.NoError(t, cache.Load())

		require.NoError(t, cache.Reconcile(true))
		assert.True(t, cache.Entitled())
	})
}

func TestMemoryDeduper(t *testing.T) {
	d := entitlement.NewMemoryDeduper()
	ctx := t.Context()

	// Seen never marks; only Mark does, so an event that failed to apply is
	// still processed on redelivery.
	seen, err := d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "evt_1"))

	seen, err = d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen)
}
