package httpapi

import (
	"errors"
	"net/http"

	"workhub.org/internal/audit"
	"workhub.org/internal/auth"
	"workhub.org/internal/tenant"
	"workhub.org/internal/workspace"
)

// writeError emits the structured error pair the API promises: a stable
// machine-checkable code plus a human message, never internal causes.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"error_code": code,
		"message":    msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

// handleAuthError maps an authorization failure to its wire code. Every kind
// in the taxonomy has exactly one mapping; classification is the producing
// component's job, so there is nothing here but the switch.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingIdentityToken):
		writeError(w, r, http.StatusUnauthorized, "MISSING_IDENTITY_TOKEN", "identity token is required")
	case errors.Is(err, auth.ErrMissingCapabilityToken):
		writeError(w, r, http.StatusUnauthorized, "MISSING_CAPABILITY_TOKEN", "capability token is required")
	case errors.Is(err, auth.ErrInvalidIdentityToken):
		writeError(w, r, http.StatusUnauthorized, "INVALID_IDENTITY_TOKEN", "identity token is invalid or expired")
	case errors.Is(err, auth.ErrExpiredCapabilityToken):
		writeError(w, r, http.StatusUnauthorized, "EXPIRED_CAPABILITY_TOKEN", "capability token has expired, refresh and retry")
	case errors.Is(err, auth.ErrInvalidCapabilityToken):
		writeError(w, r, http.StatusUnauthorized, "INVALID_CAPABILITY_TOKEN", "capability token is invalid, re-authenticate")
	case errors.Is(err, auth.ErrSubjectMismatch):
		writeError(w, r, http.StatusUnauthorized, "IDENTITY_SUBJECT_MISMATCH", "tokens belong to different subjects")
	case errors.Is(err, auth.ErrNotAMember):
		writeError(w, r, http.StatusForbidden, "NOT_A_MEMBER", "you do not have access to this workspace")
	case errors.Is(err, auth.ErrInsufficientRole):
		writeError(w, r, http.StatusForbidden, "INSUFFICIENT_ROLE", "your role does not permit this operation")
	case errors.Is(err, auth.ErrDirectoryUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "ROLE_DIRECTORY_UNAVAILABLE", "role directory is unavailable, retry later")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func handleWorkspaceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workspace.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, workspace.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "WORKSPACE_NOT_FOUND", "workspace not found")
	case errors.Is(err, workspace.ErrMemberMissing):
		writeError(w, r, http.StatusNotFound, "MEMBER_NOT_FOUND", "member not found")
	case errors.Is(err, workspace.ErrConflict):
		writeError(w, r, http.StatusConflict, "RESOURCE_CONFLICT", "resource already exists")
	case errors.Is(err, tenant.ErrInvalidWorkspaceID):
		writeError(w, r, http.StatusBadRequest, "INVALID_WORKSPACE_ID", "workspace id is not valid")
	case errors.Is(err, tenant.ErrWorkspaceNotFound):
		writeError(w, r, http.StatusNotFound, "WORKSPACE_NOT_FOUND", "workspace not found")
	case errors.Is(err, tenant.ErrWorkspaceNotProvisioned):
		writeError(w, r, http.StatusConflict, "WORKSPACE_NOT_PROVISIONED", "workspace schema is not provisioned")
	case errors.Is(err, tenant.ErrProvisioningFailed):
		writeError(w, r, http.StatusInternalServerError, "SCHEMA_PROVISIONING_FAILED", "workspace could not be provisioned")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
