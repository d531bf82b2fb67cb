// Package billing abstracts the payment provider behind a small capability
// interface: create a checkout session, fetch it back for verification,
// create a customer portal session, and parse signed webhook notifications.
// Adapters for Stripe and Paddle normalize provider-specific events onto a
// closed event set so the entitlement service never sees provider quirks.
package billing

import (
	"context"
)

// Provider is the payment provider capability interface. Every method that
// talks to the provider accepts a context and must honor its deadline.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout session and returns
	// its redirect URL. No local state is written by this call.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// GetCheckoutSession fetches a checkout session by id for pull-based
	// verification of its payment status.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// CreatePortalSession returns a short-lived link to the provider-hosted
	// billing management portal for an existing customer.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)

	// ParseWebhook verifies the payload signature against the shared secret
	// and returns the normalized event. It must fail closed: an unverifiable
	// payload is rejected with ErrSignatureInvalid and never parsed.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// CheckoutRequest contains data needed to create a checkout session.
// PriceID comes from server-side configuration, never from the client.
type CheckoutRequest struct {
	PriceID    string
	Email      string // billing email of the authenticated caller
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider's view of one payment attempt.
type CheckoutSession struct {
	ID            string
	URL           string // hosted checkout URL (empty when fetched back)
	CustomerID    string // provider customer id, set once known
	CustomerEmail string
	Status        string // provider session status (e.g. "complete")
	PaymentStatus string // provider payment status (e.g. "paid")
}

// Paid reports whether the session's payment is confirmed.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

// PortalSession is a pre-authenticated customer portal link.
type PortalSession struct {
	URL string
}

// EventType is the normalized webhook event type. The set is closed; adapters
// map unrecognized provider events to EventUnknown, which receivers accept
// and ignore for forward compatibility.
type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout_completed"
	EventInvoicePaid          EventType = "invoice_paid"
	EventInvoicePaymentFailed EventType = "invoice_payment_failed"
	EventSubscriptionDeleted  EventType = "subscription_deleted"
	EventSubscriptionUpdated  EventType = "subscription_updated"
	EventUnknown              EventType = "unknown"
)

// Event is a normalized, signature-verified webhook notification.
type Event struct {
	ID            string    // provider event id, used for delivery dedup
	Type          EventType // normalized type
	ProviderEvent string    // original provider event name
	CustomerID    string    // provider customer id
	CustomerEmail string    // present on checkout completion events
	// SubscriptionStatus carries the embedded subscription status for
	// subscription events; empty otherwise.
	SubscriptionStatus string
}

// SubscriptionActive reports whether the embedded subscription status grants
// entitlement. Only "active" and "trialing" do.
func (e *Event) SubscriptionActive() bool {
	return e.SubscriptionStatus == "active" || e.SubscriptionStatus == "trialing"
}
