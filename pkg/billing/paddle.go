package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds Paddle credentials, populated from the environment.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider for Paddle. Paddle has no first-class
// checkout session object, so hosted transactions stand in for sessions: the
// transaction id is the session id.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle billing provider.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

// CreateCheckoutSession creates a hosted Paddle transaction.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, errors.New("price ID is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"email": req.Email,
		},
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, classifyPaddleErr("create transaction", err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil || *transaction.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{
		ID:            transaction.ID,
		URL:           *transaction.Checkout.URL,
		CustomerEmail: req.Email,
		Status:        string(transaction.Status),
		PaymentStatus: paddlePaymentStatus(string(transaction.Status)),
	}, nil
}

// GetCheckoutSession fetches a transaction by id.
func (p *PaddleProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	transaction, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: sessionID,
	})
	if err != nil {
		return nil, classifyPaddleErr("get transaction", err)
	}

	cs := &CheckoutSession{
		ID:            transaction.ID,
		Status:        string(transaction.Status),
		PaymentStatus: paddlePaymentStatus(string(transaction.Status)),
	}
	if transaction.CustomerID != nil {
		cs.CustomerID = *transaction.CustomerID
	}
	return cs, nil
}

// CreatePortalSession returns a link to Paddle's customer portal overview.
func (p *PaddleProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	if customerID == "" {
		return nil, errors.New("customer ID is required")
	}

	portalSession, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: customerID,
	})
	if err != nil {
		return nil, classifyPaddleErr("create customer portal session", err)
	}

	if portalSession.URLs.General.Overview == "" {
		return nil, ErrNoPortalURL
	}
	return &PortalSession{URL: portalSession.URLs.General.Overview}, nil
}

// ParseWebhook verifies the Paddle-Signature header and normalizes the event.
func (p *PaddleProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, ErrSignatureInvalid
	}

	// The Paddle verifier works on http.Request; reconstruct one around the
	// raw payload.
	req, err := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}
	if !valid {
		return nil, ErrSignatureInvalid
	}

	var paddleEvent struct {
		EventID   string         `json:"event_id"`
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &paddleEvent); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	event := &Event{
		ID:            paddleEvent.EventID,
		Type:          mapPaddleEventType(paddleEvent.EventType),
		ProviderEvent: paddleEvent.EventType,
	}

	if customerID, ok := paddleEvent.Data["customer_id"].(string); ok {
		event.CustomerID = customerID
	}
	if status, ok := paddleEvent.Data["status"].(string); ok {
		event.SubscriptionStatus = normalizePaddleStatus(status)
	}
	if customData, ok := paddleEvent.Data["custom_data"].(map[string]any); ok {
		if email, ok := customData["email"].(string); ok {
			event.CustomerEmail = email
		}
	}

	return event, nil
}

func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "transaction.completed":
		return EventCheckoutCompleted
	case "transaction.paid":
		return EventInvoicePaid
	case "transaction.payment_failed":
		return EventInvoicePaymentFailed
	case "subscription.canceled":
		return EventSubscriptionDeleted
	case "subscription.activated", "subscription.updated", "subscription.past_due", "subscription.resumed":
		return EventSubscriptionUpdated
	default:
		return EventUnknown
	}
}

// normalizePaddleStatus maps Paddle's "canceled" spelling onto the status
// vocabulary the entitlement rules use; active and trialing pass through.
func normalizePaddleStatus(status string) string {
	if status == "cancelled" {
		return "canceled"
	}
	return status
}

// paddlePaymentStatus collapses Paddle transaction statuses onto the paid /
// unpaid vocabulary callers check against. Only completed and paid
// transactions count as paid.
func paddlePaymentStatus(status string) string {
	switch status {
	case "completed", "paid":
		return "paid"
	default:
		return "unpaid"
	}
}

func classifyPaddleErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
