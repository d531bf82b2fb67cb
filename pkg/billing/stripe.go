package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds Stripe credentials, populated from the environment.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeProvider implements Provider for Stripe.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe billing provider. The client is scoped
// to this instance; no global Stripe state is mutated.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateCheckoutSession creates a hosted subscription checkout session.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, errors.New("price ID is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classifyStripeErr("create checkout session", err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return newStripeCheckoutSession(sess), nil
}

// GetCheckoutSession fetches a checkout session by id.
func (p *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, classifyStripeErr("get checkout session", err)
	}

	return newStripeCheckoutSession(sess), nil
}

// CreatePortalSession returns a link to Stripe's billing portal.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	if customerID == "" {
		return nil, errors.New("customer ID is required")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, classifyStripeErr("create portal session", err)
	}
	if sess.URL == "" {
		return nil, ErrNoPortalURL
	}

	return &PortalSession{URL: sess.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and normalizes the event.
// Verification failure rejects the payload outright.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, ErrSignatureInvalid
	}

	// Provider schema additions must not break delivery, so API version
	// drift between the event and the SDK is tolerated.
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}

	event := &Event{
		ID:            stripeEvent.ID,
		ProviderEvent: string(stripeEvent.Type),
	}

	switch string(stripeEvent.Type) {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session event: %w", err)
		}
		event.Type = EventCheckoutCompleted
		if sess.Customer != nil {
			event.CustomerID = sess.Customer.ID
		}
		// Checkout email may live in either field depending on how the
		// session was created.
		if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
			event.CustomerEmail = sess.CustomerDetails.Email
		} else {
			event.CustomerEmail = sess.CustomerEmail
		}

	case "invoice.payment_succeeded", "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice event: %w", err)
		}
		event.Type = EventInvoicePaid
		if inv.Customer != nil {
			event.CustomerID = inv.Customer.ID
		}

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice event: %w", err)
		}
		event.Type = EventInvoicePaymentFailed
		if inv.Customer != nil {
			event.CustomerID = inv.Customer.ID
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription event: %w", err)
		}
		event.Type = EventSubscriptionDeleted
		if sub.Customer != nil {
			event.CustomerID = sub.Customer.ID
		}
		event.SubscriptionStatus = string(sub.Status)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription event: %w", err)
		}
		event.Type = EventSubscriptionUpdated
		if sub.Customer != nil {
			event.CustomerID = sub.Customer.ID
		}
		event.SubscriptionStatus = string(sub.Status)

	default:
		event.Type = EventUnknown
	}

	return event, nil
}

func newStripeCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	cs := &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		CustomerEmail: sess.CustomerEmail,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}
	if sess.Customer != nil {
		cs.CustomerID = sess.Customer.ID
	}
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		cs.CustomerEmail = sess.CustomerDetails.Email
	}
	return cs
}

// classifyStripeErr maps transport-level failures to ErrProviderUnavailable
// so callers can surface them as retryable.
func classifyStripeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
	}
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.HTTPStatusCode >= 500 {
		return fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
