// Package entitlement keeps a user's paid status consistent across the
// payment provider (authoritative, asynchronous), the durable user record,
// and the advisory client-side cache. The durable record is the source of
// truth for server-enforced access; every transition applied to it is an
// idempotent assignment so redelivered or racing provider events converge.
package entitlement

import "time"

// User is the durable entitlement record. The entitled flag is true only
// while the most recently processed provider event indicates an active or
// trialing subscription, or a verified paid checkout with no later
// revocation applied.
type User struct {
	ID                 string // stable external id from the identity provider
	Email              string // unique; upsert key for verification writes
	Name               string
	ProviderCustomerID string // empty until first successful checkout
	Entitled           bool
	CurrentRole        string
	DesiredRole        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
