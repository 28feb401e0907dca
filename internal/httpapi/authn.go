package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"workhub.org/internal/audit"
	"workhub.org/internal/auth"
	"workhub.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// capabilityHeader carries the application-issued capability token. The
	// identity assertion rides the standard Authorization header.
	capabilityHeader = "X-Workhub-Token"

	workspacePathSegment = "workspaces"
)

// Paths that bypass authorization entirely: health, docs, discovery, the
// token-validation endpoint and the diagnostics endpoint.
var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/openapi.yaml",
	"/v1/info",
	"/v1/auth/validate",
	"/",
}

// withAuth is the per-request authorization protocol. Steps run strictly in
// order: header extraction, identity verification, capability verification,
// cross-token subject reconciliation, target-workspace extraction, role
// resolution with a single directory fallback, context attachment. Handlers
// then enforce their own minimum role via requireRole.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identityToken, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			handleAuthError(w, r, auth.ErrMissingIdentityToken)
			return
		}
		capabilityToken := strings.TrimSpace(r.Header.Get(capabilityHeader))
		if capabilityToken == "" {
			handleAuthError(w, r, auth.ErrMissingCapabilityToken)
			return
		}

		identity, err := a.identity.Validate(r.Context(), identityToken)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}

		payload, err := a.codec.Decode(capabilityToken)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}

		// A stolen capability token replayed with a different identity (or
		// the reverse) dies here, even with both tokens individually valid.
		if identity.Subject != payload.Subject {
			handleAuthError(w, r, auth.ErrSubjectMismatch)
			return
		}

		workspaceID := workspaceIDFromPath(r.URL.Path)

		res := auth.ResolveRole(r.Context(), a.directory, payload.Subject, workspaceID, payload.Roles)
		if res.FellBack {
			obs.RoleFallbackRead()
		}
		if res.DirectoryErr != nil {
			// Fail closed: an unreachable directory leaves the role
			// unresolved, which the handler's check turns into NOT_A_MEMBER.
			obs.Log(map[string]any{
				"level":      "error",
				"msg":        "role_directory_unavailable",
				"request_id": audit.RequestIDFromContext(r.Context()),
				"cause":      res.DirectoryErr.Error(),
			})
		}

		rc := auth.RequestContext{
			Subject:          payload.Subject,
			Email:            payload.Email,
			Roles:            res.Roles,
			WorkspaceID:      workspaceID,
			WorkspaceRole:    res.Role,
			HasWorkspaceRole: res.Found,
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithRequest(r.Context(), rc)))
	})
}

// requireRole enforces the handler-declared minimum role for the target
// workspace. It writes the denial itself and reports whether to proceed.
func (a *API) requireRole(w http.ResponseWriter, r *http.Request, min auth.Role) (auth.RequestContext, bool) {
	rc, ok := auth.RequestFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrMissingCapabilityToken)
		return auth.RequestContext{}, false
	}
	if !rc.HasWorkspaceRole {
		handleAuthError(w, r, auth.ErrNotAMember)
		return auth.RequestContext{}, false
	}
	if !rc.WorkspaceRole.AtLeast(min) {
		handleAuthError(w, r, auth.ErrInsufficientRole)
		return auth.RequestContext{}, false
	}
	return rc, true
}

// requireAuthenticated returns the request context for endpoints that need a
// caller but no workspace role (list workspaces, refresh).
func (a *API) requireAuthenticated(w http.ResponseWriter, r *http.Request) (auth.RequestContext, bool) {
	rc, ok := auth.RequestFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrMissingCapabilityToken)
		return auth.RequestContext{}, false
	}
	return rc, true
}

// workspaceIDFromPath finds the segment after "workspaces" and returns it if
// it is a syntactically valid workspace id. Anything else yields no target
// workspace; workspace-scoped handlers then deny via their role check.
func workspaceIDFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg != workspacePathSegment {
			continue
		}
		if i+1 >= len(segments) {
			return ""
		}
		candidate := segments[i+1]
		if len(candidate) != 36 {
			return ""
		}
		if _, err := uuid.Parse(candidate); err != nil {
			return ""
		}
		return candidate
	}
	return ""
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
