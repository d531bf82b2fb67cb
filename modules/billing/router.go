// Package billing exposes the entitlement synchronization subsystem over
// HTTP: the provider webhook, checkout creation, pull-based session
// verification, the customer portal, checkout completion pages, and the
// profile endpoint clients poll for the authoritative entitled flag.
package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aulcerts/entitlement/pkg/billing"
	"github.com/aulcerts/entitlement/pkg/entitlement"
	"github.com/aulcerts/entitlement/pkg/identity"
)

// Config holds HTTP-facing billing settings, populated from the environment.
type Config struct {
	// SignatureHeader is the webhook signature header name of the active
	// provider ("Stripe-Signature" or "Paddle-Signature"). When empty the
	// server derives it from the configured provider.
	SignatureHeader string `env:"BILLING_SIGNATURE_HEADER"`
	// WebhookBodyLimit bounds webhook payload reads.
	WebhookBodyLimit int64 `env:"BILLING_WEBHOOK_BODY_LIMIT" envDefault:"1048576"`
}

// Module bundles the billing HTTP handlers around the entitlement service.
type Module struct {
	cfg Config
	svc *entitlement.Service
	log *slog.Logger
}

// NewModule creates the billing HTTP module.
func NewModule(cfg Config, svc *entitlement.Service, log *slog.Logger) *Module {
	if svc == nil {
		panic("billing: entitlement.Service is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Module{cfg: cfg, svc: svc, log: log}
}

// Router mounts the module's routes. The webhook and the completion pages
// are unauthenticated by design: the webhook authenticates via its payload
// signature, and the completion pages carry no state beyond the signal they
// relay. Everything else requires the identity middleware.
func (m *Module) Router(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/api/billing", func(api chi.Router) {
		api.Post("/webhook", m.handleWebhook)
		api.Get("/success", m.handleSuccessPage)
		api.Get("/cancel", m.handleCancelPage)
		api.Get("/portal-return", m.handlePortalReturnPage)

		api.Group(func(authed chi.Router) {
			authed.Use(authn)
			authed.Post("/checkout", m.handleCheckout)
			authed.Get("/verify", m.handleVerify)
			authed.Post("/portal", m.handlePortal)
		})
	})

	r.Route("/api/user", func(api chi.Router) {
		api.Use(authn)
		api.Get("/profile", m.handleGetProfile)
		api.Post("/profile", m.handleSaveProfile)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForErr maps domain sentinels to HTTP status codes. Unrecognized
// errors are internal failures the caller may retry.
func statusForErr(err error) (int, string) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, billing.ErrSignatureInvalid):
		return http.StatusBadRequest, "invalid signature"
	case errors.Is(err, billing.ErrUnknownPlan):
		return http.StatusBadRequest, "unknown plan"
	case errors.Is(err, entitlement.ErrNoCustomer):
		return http.StatusBadRequest, "No active subscription found."
	case errors.Is(err, billing.ErrProviderUnavailable):
		return http.StatusBadGateway, "payment provider unavailable, please retry"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
