package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"workhub.org/internal/ids"
)

const tokenIssuer = "workhub"

// TokenPayload is the decoded content of a capability token: who the caller
// is plus the complete set of workspace role assignments at issuance time.
type TokenPayload struct {
	Subject   string
	Email     string
	Roles     map[string]Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type capabilityClaims struct {
	Email string          `json:"email"`
	Roles map[string]Role `json:"roles"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies capability tokens. Both operations are pure:
// no storage, no revocation list, a new token simply replaces an old one.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec around the server-held signing secret and the
// default token lifetime.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock overrides the time source. Test use only.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// TTL returns the default token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a capability token for the subject carrying the full role map.
// The signature covers every claim, so any later mutation invalidates the
// token. A zero ttl is legal and yields a token that is already at its expiry
// instant; pass TTL() for the configured default.
func (c *TokenCodec) Issue(subject, email string, roles map[string]Role, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if ttl < 0 {
		return "", fmt.Errorf("%w: ttl must not be negative", ErrInvalidInput)
	}
	if roles == nil {
		roles = map[string]Role{}
	}

	now := c.now().UTC()
	claims := capabilityClaims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ids.New(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign capability token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and validity window and returns the payload.
// The accepted signing algorithm is pinned; a token naming any other alg is
// rejected before signature verification regardless of its header.
func (c *TokenCodec) Decode(token string) (*TokenPayload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidCapabilityToken
	}

	var claims capabilityClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidCapabilityToken
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		// A tampered token that also happens to be expired must surface as
		// invalid, so the signature check wins over the expiry check.
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidCapabilityToken
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredCapabilityToken
		default:
			return nil, ErrInvalidCapabilityToken
		}
	}
	if !parsed.Valid {
		return nil, ErrInvalidCapabilityToken
	}
	if err := validateCapabilityClaims(&claims); err != nil {
		return nil, ErrInvalidCapabilityToken
	}

	roles := make(map[string]Role, len(claims.Roles))
	for workspaceID, role := range claims.Roles {
		if !role.Valid() {
			return nil, ErrInvalidCapabilityToken
		}
		roles[workspaceID] = role
	}

	return &TokenPayload{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Roles:     roles,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func validateCapabilityClaims(claims *capabilityClaims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
