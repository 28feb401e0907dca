package httpapi

import (
	"net/http"
	"time"

	"workhub.org/internal/audit"
	"workhub.org/internal/auth"
	"workhub.org/internal/obs"
)

type tokenResponse struct {
	UserID    string               `json:"user_id"`
	Email     string               `json:"email,omitempty"`
	Token     string               `json:"token"`
	Roles     map[string]auth.Role `json:"roles"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// handleAuthValidate verifies the external identity assertion and issues a
// capability token carrying the caller's complete role map. Public path: the
// caller has no capability token yet.
func (a *API) handleAuthValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	identityToken, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		handleAuthError(w, r, auth.ErrMissingIdentityToken)
		return
	}
	identity, err := a.identity.Validate(r.Context(), identityToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	// A directory outage must not block sign-in; the token starts with an
	// empty role map and the staleness fallback heals it per request.
	roles, err := a.directory.RolesForUser(r.Context(), identity.Subject)
	if err != nil {
		obs.Log(map[string]any{
			"level":      "warn",
			"msg":        "directory_unavailable_on_validate",
			"request_id": audit.RequestIDFromContext(r.Context()),
			"cause":      err.Error(),
		})
		roles = map[string]auth.Role{}
	}

	token, err := a.codec.Issue(identity.Subject, identity.Email, roles, a.codec.TTL())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "token issuance failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user_id": identity.Subject,
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		UserID:    identity.Subject,
		Email:     identity.Email,
		Token:     token,
		Roles:     roles,
		ExpiresAt: time.Now().UTC().Add(a.codec.TTL()),
	})
}

// handleAuthRefresh reissues the caller's capability token from a fresh
// directory read. Unlike validate, a directory outage is surfaced here: a
// refreshed token silently missing roles would be worse than a retry.
func (a *API) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := a.requireAuthenticated(w, r)
	if !ok {
		return
	}

	roles, err := a.directory.RolesForUser(r.Context(), rc.Subject)
	if err != nil {
		handleAuthError(w, r, auth.ErrDirectoryUnavailable)
		return
	}
	token, err := a.codec.Issue(rc.Subject, rc.Email, roles, a.codec.TTL())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "token issuance failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.refreshed", map[string]any{
		"user_id": rc.Subject,
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		UserID:    rc.Subject,
		Email:     rc.Email,
		Token:     token,
		Roles:     roles,
		ExpiresAt: time.Now().UTC().Add(a.codec.TTL()),
	})
}
