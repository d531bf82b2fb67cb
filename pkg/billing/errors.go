package billing

import "errors"

var (
	ErrMissingAPIKey        = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret = errors.New("billing provider webhook secret is required")

	// ErrSignatureInvalid means the webhook payload could not be verified
	// against the shared secret. The payload must not be trusted.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")

	// ErrProviderUnavailable means a synchronous provider call timed out or
	// failed server-side. Safe to retry; no local state was changed.
	ErrProviderUnavailable = errors.New("billing provider unavailable")

	ErrNoCheckoutURL = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL   = errors.New("no portal URL returned from provider")

	ErrUnknownPlan = errors.New("unknown billing plan")
)
