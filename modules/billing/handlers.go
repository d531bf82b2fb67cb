package billing

import (
	"io"
	"net/http"

	"github.com/aulcerts/entitlement/pkg/entitlement"
	"github.com/aulcerts/entitlement/pkg/identity"
	"github.com/aulcerts/entitlement/pkg/logger"
	"github.com/aulcerts/entitlement/pkg/requestid"
)

// handleWebhook accepts one provider event delivery. The response must be a
// fast 2xx on success; any failure answers non-2xx so the provider
// redelivers. The raw body is passed through untouched because signature
// verification covers the exact bytes.
func (m *Module) handleWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(m.cfg.SignatureHeader)
	if signature == "" {
		respondError(w, http.StatusBadRequest, "no signature found")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, m.cfg.WebhookBodyLimit))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	if err := m.svc.HandleWebhook(r.Context(), payload, signature); err != nil {
		status, msg := statusForErr(err)
		// A signature failure is a potential attack, not a processing error.
		reqID := logger.RequestID(requestid.FromContext(r.Context()))
		if status == http.StatusBadRequest {
			m.log.WarnContext(r.Context(), "rejected webhook", logger.Error(err), reqID)
		} else {
			m.log.ErrorContext(r.Context(), "webhook processing failed", logger.Error(err), reqID)
		}
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// handleCheckout creates a provider-hosted checkout session for the
// authenticated caller. The billing email is always the caller's own; a
// client-supplied email is never trusted.
func (m *Module) handleCheckout(w http.ResponseWriter, r *http.Request) {
	user, err := identity.CurrentUser(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req checkoutRequest
	// An empty body selects the default plan.
	_ = decodeJSON(r, &req)

	sess, err := m.svc.CreateCheckout(r.Context(), callerOf(user), req.Plan)
	if err != nil {
		status, msg := statusForErr(err)
		m.log.ErrorContext(r.Context(), "checkout creation failed", logger.Error(err), logger.UserID(user.ID))
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": sess.URL})
}

// handleVerify resolves a checkout session against the provider and, when
// paid, upserts the caller's entitlement. This is the synchronous
// reconciliation path for the redirect-before-webhook race.
func (m *Module) handleVerify(w http.ResponseWriter, r *http.Request) {
	user, err := identity.CurrentUser(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	result, err := m.svc.VerifySession(r.Context(), callerOf(user), sessionID)
	if err != nil {
		status, msg := statusForErr(err)
		m.log.ErrorContext(r.Context(), "session verification failed",
			logger.Error(err), logger.SessionID(sessionID))
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"customerId":    result.CustomerID,
		"status":        result.Status,
		"paymentStatus": result.PaymentStatus,
	})
}

// handlePortal returns a one-time provider-hosted billing management link.
func (m *Module) handlePortal(w http.ResponseWriter, r *http.Request) {
	user, err := identity.CurrentUser(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	portal, err := m.svc.CreatePortal(r.Context(), callerOf(user))
	if err != nil {
		status, msg := statusForErr(err)
		if status >= http.StatusInternalServerError {
			m.log.ErrorContext(r.Context(), "portal creation failed", logger.Error(err), logger.UserID(user.ID))
		}
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": portal.URL})
}

func callerOf(u identity.User) entitlement.Caller {
	return entitlement.Caller{ID: u.ID, Email: u.Email, Name: u.Name}
}
