package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aulcerts/entitlement/pkg/entitlement"
	"github.com/aulcerts/entitlement/pkg/identity"
	"github.com/aulcerts/entitlement/pkg/logger"
)

type profileResponse struct {
	CurrentRole string `json:"currentRole"`
	DesiredRole string `json:"desiredRole"`
	Entitled    bool   `json:"entitled"`
}

type profileRequest struct {
	CurrentRole string `json:"currentRole"`
	DesiredRole string `json:"desiredRole"`
}

// handleGetProfile returns the caller's profile and the authoritative
// entitled flag. Clients reconcile their local entitlement cache against
// this response, and the completion fallback polls it.
func (m *Module) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := identity.CurrentUser(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	record, err := m.svc.Profile(r.Context(), callerOf(user))
	if err != nil {
		if errors.Is(err, entitlement.ErrUserNotFound) {
			// Authenticated but not yet stored: empty profile, not entitled.
			respondJSON(w, http.StatusOK, profileResponse{})
			return
		}
		m.log.ErrorContext(r.Context(), "failed to fetch profile", logger.Error(err), logger.UserID(user.ID))
		respondError(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}

	respondJSON(w, http.StatusOK, profileResponse{
		CurrentRole: record.CurrentRole,
		DesiredRole: record.DesiredRole,
		Entitled:    record.Entitled,
	})
}

// handleSaveProfile upserts the caller's profile fields.
func (m *Module) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	user, err := identity.CurrentUser(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := m.svc.SaveProfile(r.Context(), callerOf(user), req.CurrentRole, req.DesiredRole); err != nil {
		m.log.ErrorContext(r.Context(), "failed to update profile", logger.Error(err), logger.UserID(user.ID))
		respondError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
