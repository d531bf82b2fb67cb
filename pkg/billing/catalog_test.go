package billing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulcerts/entitlement/pkg/billing"
)

func TestParseCatalog(t *testing.T) {
	t.Run("valid catalog", func(t *testing.T) {
		catalog, err := billing.ParseCatalog([]byte(`
plans:
  pro:
    name: Pro
    price_id: price_123
  team:
    name: Team
    price_id: price_456
`))
		require.NoError(t, err)

		priceID, err := catalog.PriceID("pro")
		require.NoError(t, err)
		assert.Equal(t, "price_123", priceID)

		assert.True(t, catalog.Has("team"))
		assert.False(t, catalog.Has("enterprise"))
	})

	t.Run("unknown plan", func(t *testing.T) {
		catalog, err := billing.ParseCatalog([]byte("plans:\n  pro:\n    price_id: price_123\n"))
		require.NoError(t, err)

		_, err = catalog.PriceID("enterprise")
		assert.ErrorIs(t, err, billing.ErrUnknownPlan)
	})

	t.Run("empty catalog", func(t *testing.T) {
		_, err := billing.ParseCatalog([]byte("plans: {}\n"))
		assert.Error(t, err)
	})

	t.Run("plan without price id", func(t *testing.T) {
		_, err := billing.ParseCatalog([]byte("plans:\n  pro:\n    name: Pro\n"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := billing.ParseCatalog([]byte("plans: [broken"))
		assert.Error(t, err)
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Run("reads from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte("plans:\n  pro:\n    price_id: price_123\n"), 0o600))

		catalog, err := billing.LoadCatalog(path)
		require.NoError(t, err)
		assert.True(t, catalog.Has("pro"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := billing.LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
