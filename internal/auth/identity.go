package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"workhub.org/internal/obs"
)

// Identity is what the service consumes from an external identity assertion:
// a stable subject identifier and, when the provider shares it, an email.
type Identity struct {
	Subject string
	Email   string
}

// IdentityValidator verifies an externally issued identity token. Every
// failure collapses to ErrInvalidIdentityToken for callers; the specific
// cause goes to internal diagnostics only.
type IdentityValidator interface {
	Validate(ctx context.Context, rawToken string) (Identity, error)
}

// OIDCValidator verifies identity assertions against an OpenID Connect
// provider. Key retrieval, caching and rotation are handled by the provider's
// remote key set.
type OIDCValidator struct {
	verifier *oidc.IDTokenVerifier
}

var _ IdentityValidator = (*OIDCValidator)(nil)

// NewOIDCValidator discovers the provider configuration from the issuer URL
// and prepares a verifier pinned to the expected audience.
func NewOIDCValidator(ctx context.Context, issuerURL, audience string) (*OIDCValidator, error) {
	issuerURL = strings.TrimSpace(issuerURL)
	audience = strings.TrimSpace(audience)
	if issuerURL == "" || audience == "" {
		return nil, errors.New("auth: identity issuer and audience are required")
	}
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, err
	}
	return &OIDCValidator{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

// Validate checks signature, issuer, audience and expiry, then extracts the
// subject and email claims.
func (v *OIDCValidator) Validate(ctx context.Context, rawToken string) (Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Identity{}, ErrInvalidIdentityToken
	}
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		obs.Log(map[string]any{
			"level": "warn",
			"msg":   "identity_token_rejected",
			"cause": err.Error(),
		})
		return Identity{}, ErrInvalidIdentityToken
	}

	var claims struct {
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		obs.Log(map[string]any{
			"level": "warn",
			"msg":   "identity_claims_unreadable",
			"cause": err.Error(),
		})
		return Identity{}, ErrInvalidIdentityToken
	}
	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}
	if strings.TrimSpace(idToken.Subject) == "" {
		return Identity{}, ErrInvalidIdentityToken
	}
	return Identity{Subject: idToken.Subject, Email: email}, nil
}
