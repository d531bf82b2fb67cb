package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aulcerts/entitlement/pkg/billing"
	"github.com/aulcerts/entitlement/pkg/logger"
)

// Config holds entitlement service settings, populated from the environment.
type Config struct {
	// BaseURL is the public origin checkout completion pages are served from.
	BaseURL string `env:"APP_URL" envDefault:"http://localhost:8080"`
	// ProviderTimeout bounds every synchronous provider call; expiry surfaces
	// billing.ErrProviderUnavailable instead of hanging the caller.
	ProviderTimeout time.Duration `env:"BILLING_PROVIDER_TIMEOUT" envDefault:"10s"`
	// DefaultPlan is the catalog plan used when checkout names none.
	DefaultPlan string `env:"BILLING_DEFAULT_PLAN" envDefault:"pro"`
}

// Caller is the authenticated user on whose behalf an operation runs.
type Caller struct {
	ID    string
	Email string
	Name  string
}

// VerifyResult is the outcome of pull-based session verification.
type VerifyResult struct {
	CustomerID    string
	Status        string
	PaymentStatus string
	Entitled      bool
}

// Service coordinates entitlement state across the payment provider and the
// durable store. All transitions it applies are idempotent assignments.
type Service struct {
	cfg      Config
	provider billing.Provider
	catalog  *billing.Catalog
	store    Store
	dedup    Deduper
	log      *slog.Logger
}

// NewService creates the entitlement service. Provider, catalog, and store
// are required; a nil deduper disables delivery dedup (transitions stay
// idempotent without it), and a nil logger falls back to slog.Default.
func NewService(cfg Config, provider billing.Provider, catalog *billing.Catalog, store Store, dedup Deduper, log *slog.Logger) *Service {
	if provider == nil {
		panic("entitlement: billing.Provider is required")
	}
	if catalog == nil {
		panic("entitlement: billing.Catalog is required")
	}
	if store == nil {
		panic("entitlement: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	return &Service{
		cfg:      cfg,
		provider: provider,
		catalog:  catalog,
		store:    store,
		dedup:    dedup,
		log:      log,
	}
}

// HandleWebhook verifies, deduplicates, and applies one provider event.
// Signature failure rejects the payload with no state change. A store failure
// returns an error so the HTTP layer responds non-2xx and the provider
// redelivers; reapplying the same event later is harmless because every
// transition is an assignment keyed by customer id or email.
//
// Ordering: the last webhook processed wins. The provider does not guarantee
// delivery order and events carry no sequence we compare, so a stale event
// arriving late can briefly override a newer state until the next event or
// verification corrects it.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	if s.dedup != nil && event.ID != "" {
		seen, err := s.dedup.Seen(ctx, event.ID)
		if err != nil {
			// Dedup is an optimization; fall through and rely on idempotent
			// transitions.
			s.log.WarnContext(ctx, "webhook dedup check failed", logger.Error(err))
		} else if seen {
			s.log.DebugContext(ctx, "skipping redelivered webhook event",
				logger.EventType(event.ProviderEvent), slog.String("event_id", event.ID))
			return nil
		}
	}

	if err := s.applyEvent(ctx, event); err != nil {
		return err
	}

	// Mark only after the transition landed. A failed apply returns non-2xx
	// upstream and the redelivery must not be suppressed by the dedup check.
	if s.dedup != nil && event.ID != "" {
		if err := s.dedup.Mark(ctx, event.ID); err != nil {
			s.log.WarnContext(ctx, "failed to mark webhook event as applied", logger.Error(err))
		}
	}
	return nil
}

// applyEvent dispatches one verified event to the store. Every branch is an
// idempotent assignment.
func (s *Service) applyEvent(ctx context.Context, event *billing.Event) error {
	switch event.Type {
	case billing.EventCheckoutCompleted:
		// Both identifiers must be present to bind the customer to a user.
		if event.CustomerEmail == "" || event.CustomerID == "" {
			s.log.WarnContext(ctx, "checkout completed event missing customer identity",
				logger.CustomerID(event.CustomerID))
			break
		}
		// The webhook can arrive before the user ever returns to the app, so
		// this must create the row, not just update it. The generated id is a
		// placeholder; SaveProfile adopts the identity-provider id on the
		// user's first authenticated write.
		if err := s.store.UpsertEntitled(ctx, UpsertParams{
			ID:                 uuid.New().String(),
			Email:              event.CustomerEmail,
			ProviderCustomerID: event.CustomerID,
			Entitled:           true,
		}); err != nil {
			return fmt.Errorf("failed to apply checkout completion: %w", err)
		}
		s.log.InfoContext(ctx, "entitlement granted on checkout completion",
			logger.CustomerID(event.CustomerID))

	case billing.EventInvoicePaid:
		if err := s.store.SetEntitledByCustomerID(ctx, event.CustomerID, true); err != nil {
			return fmt.Errorf("failed to apply invoice payment: %w", err)
		}

	case billing.EventInvoicePaymentFailed:
		if err := s.store.SetEntitledByCustomerID(ctx, event.CustomerID, false); err != nil {
			return fmt.Errorf("failed to apply payment failure: %w", err)
		}
		s.log.InfoContext(ctx, "entitlement revoked on payment failure",
			logger.CustomerID(event.CustomerID))

	case billing.EventSubscriptionDeleted:
		if err := s.store.SetEntitledByCustomerID(ctx, event.CustomerID, false); err != nil {
			return fmt.Errorf("failed to apply subscription deletion: %w", err)
		}
		s.log.InfoContext(ctx, "entitlement revoked on subscription deletion",
			logger.CustomerID(event.CustomerID))

	case billing.EventSubscriptionUpdated:
		entitled := event.SubscriptionActive()
		if err := s.store.SetEntitledByCustomerID(ctx, event.CustomerID, entitled); err != nil {
			return fmt.Errorf("failed to apply subscription update: %w", err)
		}

	default:
		// Unknown events are accepted and ignored so new provider event
		// types do not break delivery.
		s.log.DebugContext(ctx, "ignoring unhandled webhook event",
			logger.EventType(event.ProviderEvent))
	}

	return nil
}

// CreateCheckout creates a provider-hosted checkout session for the caller.
// The price id comes from the server-side catalog; no local row is written
// until a success signal arrives, so an abandoned checkout leaves nothing
// behind.
func (s *Service) CreateCheckout(ctx context.Context, caller Caller, plan string) (*billing.CheckoutSession, error) {
	if plan == "" {
		plan = s.cfg.DefaultPlan
	}
	priceID, err := s.catalog.PriceID(plan)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	return s.provider.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		PriceID:    priceID,
		Email:      caller.Email,
		SuccessURL: s.cfg.BaseURL + "/api/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.BaseURL + "/api/billing/cancel",
	})
}

// VerifySession fetches a checkout session from the provider and, only when
// payment is confirmed, upserts the caller's record keyed by unique email.
// This pull-based path covers the common race where the browser returns from
// checkout before the webhook is delivered. Verifying the same session twice
// creates exactly one row.
func (s *Service) VerifySession(ctx context.Context, caller Caller, sessionID string) (*VerifyResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	sess, err := s.provider.GetCheckoutSession(fetchCtx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		CustomerID:    sess.CustomerID,
		Status:        sess.Status,
		PaymentStatus: sess.PaymentStatus,
	}

	if sess.Paid() && sess.CustomerID != "" && caller.Email != "" {
		if err := s.store.UpsertEntitled(ctx, UpsertParams{
			ID:                 caller.ID,
			Email:              caller.Email,
			Name:               caller.Name,
			ProviderCustomerID: sess.CustomerID,
			Entitled:           true,
		}); err != nil {
			return nil, err
		}
		result.Entitled = true
		s.log.InfoContext(ctx, "entitlement confirmed by session verification",
			logger.SessionID(sessionID), logger.CustomerID(sess.CustomerID))
	}

	return result, nil
}

// CreatePortal returns a provider-hosted billing management link for an
// already-entitled caller. A caller with no bound customer id gets
// ErrNoCustomer, which is a business condition distinct from an
// authorization failure.
func (s *Service) CreatePortal(ctx context.Context, caller Caller) (*billing.PortalSession, error) {
	user, err := s.store.FindByEmail(ctx, caller.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNoCustomer
		}
		return nil, err
	}
	if user.ProviderCustomerID == "" {
		return nil, ErrNoCustomer
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	return s.provider.CreatePortalSession(ctx, user.ProviderCustomerID, s.cfg.BaseURL+"/dashboard")
}

// Profile returns the caller's durable record, which carries the
// authoritative entitled flag clients reconcile their local cache against.
func (s *Service) Profile(ctx context.Context, caller Caller) (*User, error) {
	return s.store.FindByID(ctx, caller.ID)
}

// SaveProfile upserts the caller's profile fields keyed by identity id.
func (s *Service) SaveProfile(ctx context.Context, caller Caller, currentRole, desiredRole string) error {
	return s.store.SaveProfile(ctx, caller.ID, caller.Email, caller.Name, currentRole, desiredRole)
}
