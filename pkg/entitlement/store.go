package entitlement

import "context"

// UpsertParams carries one verified entitlement assignment keyed by email.
type UpsertParams struct {
	ID                 string // identity-provider id, used only on insert
	Email              string
	Name               string
	ProviderCustomerID string
	Entitled           bool
}

// Store is the durable entitlement record interface. All writes are
// idempotent assignments: repeating a call with the same input leaves the
// store in the same state.
type Store interface {
	// FindByEmail returns the user record for an email.
	// Returns ErrUserNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID returns the user record for an identity-provider id.
	// Returns ErrUserNotFound when absent.
	FindByID(ctx context.Context, id string) (*User, error)

	// UpsertEntitled atomically creates or updates the record keyed by unique
	// email, binding the provider customer id and entitled flag. The webhook
	// receiver and session verifier may race on this; whichever lands last
	// leaves the same consistent state.
	UpsertEntitled(ctx context.Context, params UpsertParams) error

	// SetEntitledByCustomerID sets the flag for the user bound to a provider
	// customer id in a single atomic update. Unknown customer id is a no-op,
	// not an error: webhooks may arrive before the binding exists.
	SetEntitledByCustomerID(ctx context.Context, customerID string, entitled bool) error

	// SaveProfile creates or updates profile fields keyed by unique email,
	// adopting the caller's identity id. A row created by a webhook before the
	// user's first authenticated write carries a placeholder id; this replaces
	// it while keeping the entitlement already granted.
	SaveProfile(ctx context.Context, id, email, name, currentRole, desiredRole string) error
}
