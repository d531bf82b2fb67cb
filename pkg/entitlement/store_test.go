package entitlement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulcerts/entitlement/pkg/entitlement"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("find unknown user", func(t *testing.T) {
		store := entitlement.NewMemoryStore()

		_, err := store.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, entitlement.ErrUserNotFound)

		_, err = store.FindByID(ctx, "nobody")
		assert.ErrorIs(t, err, entitlement.ErrUserNotFound)
	})

	t.Run("upsert is keyed by email", func(t *testing.T) {
		store := entitlement.NewMemoryStore()

		require.NoError(t, store.UpsertEntitled(ctx, entitlement.UpsertParams{
			ID: "user_1", Email: "a@b.com", Name: "Ada",
		}))
		require.NoError(t, store.UpsertEntitled(ctx, entitlement.UpsertParams{
			ID: "user_1", Email: "a@b.com", ProviderCustomerID: "cus_1", Entitled: true,
		}))

		assert.Equal(t, 1, store.Count())
		user, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.True(t, user.Entitled)
		assert.Equal(t, "cus_1", user.ProviderCustomerID)
		assert.Equal(t, "Ada", user.Name)
	})

	t.Run("entitlement writes to unknown customer ids are no-ops", func(t *testing.T) {
		store := entitlement.NewMemoryStore()

		require.NoError(t, store.SetEntitledByCustomerID(ctx, "cus_unknown", true))
		assert.Equal(t, 0, store.Count())
	})

	t.Run("set entitled by customer id", func(t *testing.T) {
		store := entitlement.NewMemoryStore()
		require.NoError(t, store.UpsertEntitled(ctx, entitlement.UpsertParams{
			ID: "user_1", Email: "a@b.com", ProviderCustomerID: "cus_1", Entitled: true,
		}))

		require.NoError(t, store.SetEntitledByCustomerID(ctx, "cus_1", false))

		user, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.False(t, user.Entitled)
	})

	t.Run("save profile preserves entitlement", func(t *testing.T) {
		store := entitlement.NewMemoryStore()
		require.NoError(t, store.UpsertEntitled(ctx, entitlement.UpsertParams{
			ID: "user_1", Email: "a@b.com", ProviderCustomerID: "cus_1", Entitled: true,
		}))

		require.NoError(t, store.SaveProfile(ctx, "user_1", "a@b.com", "Ada", "engineer", "architect"))

		user, err := store.FindByID(ctx, "user_1")
		require.NoError(t, err)
		assert.True(t, user.Entitled)
		assert.Equal(t, "engineer", user.CurrentRole)
		assert.Equal(t, "architect", user.DesiredRole)
	})

	t.Run("save profile adopts a webhook-created row", func(t *testing.T) {
		store := entitlement.NewMemoryStore()
		// Checkout webhook landed before the user's first authenticated
		// write; the row carries a placeholder id.
		require.NoError(t, store.UpsertEntitled(ctx, entitlement.UpsertParams{
			ID: "placeholder", Email: "a@b.com", ProviderCustomerID: "cus_1", Entitled: true,
		}))

		require.NoError(t, store.SaveProfile(ctx, "user_1", "a@b.com", "Ada", "engineer", "architect"))

		assert.Equal(t, 1, store.Count())
		user, err := store.FindByID(ctx, "user_1")
		require.NoError(t, err)
		assert.True(t, user.Entitled)
		assert.Equal(t, "cus_1", user.ProviderCustomerID)
		assert.Equal(t, "engineer", user.CurrentRole)
	})

	t.Run("save profile creates the row when missing", func(t *testing.T) {
		store := entitlement.NewMemoryStore()

		require.NoError(t, store.SaveProfile(ctx, "user_1", "a@b.com", "Ada", "engineer", ""))

		user, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, "user_1", user.ID)
		assert.False(t, user.Entitled)
	})

	t.Run("find returns copies", func(t *testing.T) {
		store := entitlement.NewMemoryStore()
		require.NoError(t, store.UpsertEntitled(ctx, entitlement.UpsertParams{
			ID: "user_1", Email: "a@b.com",
		}))

		user, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		user.Entitled = true

		fresh, err := store.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.False(t, fresh.Entitled)
	})
}
