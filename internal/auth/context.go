package auth

import "context"

// RequestContext is the per-request authorization state the middleware hands
// to handlers. It lives exactly as long as the request; the merged role map
// is never written back to the client's token.
type RequestContext struct {
	Subject string
	Email   string
	// Roles is the capability token's role map, possibly widened by a single
	// directory fallback read during this request.
	Roles map[string]Role
	// WorkspaceID is the target workspace parsed from the request path, empty
	// when the path carries none.
	WorkspaceID string
	// WorkspaceRole is the resolved role for WorkspaceID. Valid only when
	// HasWorkspaceRole is true.
	WorkspaceRole    Role
	HasWorkspaceRole bool
}

type requestContextKey struct{}

// ContextWithRequest attaches the authorization state to the context.
func ContextWithRequest(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, &rc)
}

// RequestFromContext extracts the authorization state, if present.
func RequestFromContext(ctx context.Context) (RequestContext, bool) {
	if ctx == nil {
		return RequestContext{}, false
	}
	v, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	if !ok || v == nil {
		return RequestContext{}, false
	}
	return *v, true
}
