package entitlement

import "errors"

var (
	// ErrUserNotFound means no durable record exists for the lookup key.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoCustomer is a business condition, not a system failure: the caller
	// has no bound provider customer id, so there is nothing to manage in the
	// billing portal.
	ErrNoCustomer = errors.New("no active subscription")

	// ErrPersistenceFailure means a store write failed mid-transition. The
	// webhook path surfaces it as a non-2xx response so the provider
	// redelivers; the verification path surfaces it to the caller for retry.
	ErrPersistenceFailure = errors.New("entitlement store write failed")
)
