package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789"

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func TestTokenRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	roles := map[string]Role{
		"8d4f1f5e-3c2a-4b6f-9d1e-0a2b3c4d5e6f": RoleOwner,
		"1c9e7a3b-5d4f-4e2a-8b6c-7d8e9f0a1b2c": RoleViewer,
	}

	token, err := codec.Issue("user-42", "u42@example.com", roles, codec.TTL())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	payload, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", payload.Subject)
	}
	if payload.Email != "u42@example.com" {
		t.Fatalf("unexpected email: %s", payload.Email)
	}
	if len(payload.Roles) != 2 {
		t.Fatalf("role map not preserved: %v", payload.Roles)
	}
	if payload.Roles["8d4f1f5e-3c2a-4b6f-9d1e-0a2b3c4d5e6f"] != RoleOwner {
		t.Fatalf("owner role not preserved: %v", payload.Roles)
	}
	if !payload.ExpiresAt.After(payload.IssuedAt) {
		t.Fatalf("expiry %v not after issuance %v", payload.ExpiresAt, payload.IssuedAt)
	}
}

func TestTokenRejectsEmptySubject(t *testing.T) {
	codec := newTestCodec(t)
	if _, err := codec.Issue("  ", "", nil, time.Hour); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTokenRejectsNegativeTTL(t *testing.T) {
	codec := newTestCodec(t)
	if _, err := codec.Issue("user-1", "", nil, -time.Second); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTokenZeroTTLExpiresImmediately(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t).WithClock(func() time.Time { return issued })

	token, err := codec.Issue("user-1", "", nil, 0)
	if err != nil {
		t.Fatalf("Issue with zero ttl: %v", err)
	}

	// Any instant after issuance is past the expiry.
	codec.WithClock(func() time.Time { return issued.Add(time.Second) })
	if _, err := codec.Decode(token); !errors.Is(err, ErrExpiredCapabilityToken) {
		t.Fatalf("expected ErrExpiredCapabilityToken, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t).WithClock(func() time.Time { return issued })

	token, err := codec.Issue("user-1", "", map[string]Role{"ws": RoleMember}, 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	codec.WithClock(func() time.Time { return issued.Add(29 * time.Minute) })
	if _, err := codec.Decode(token); err != nil {
		t.Fatalf("token should still verify before expiry: %v", err)
	}

	codec.WithClock(func() time.Time { return issued.Add(31 * time.Minute) })
	if _, err := codec.Decode(token); !errors.Is(err, ErrExpiredCapabilityToken) {
		t.Fatalf("expected ErrExpiredCapabilityToken, got %v", err)
	}
}

func TestTokenTamperDetection(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Issue("user-1", "", map[string]Role{"ws": RoleViewer}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip one character in the payload segment.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d segments", len(parts))
	}
	payload := []byte(parts[1])
	mid := len(payload) / 2
	if payload[mid] == 'A' {
		payload[mid] = 'B'
	} else {
		payload[mid] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := codec.Decode(tampered); !errors.Is(err, ErrInvalidCapabilityToken) {
		t.Fatalf("expected ErrInvalidCapabilityToken for tampered token, got %v", err)
	}
}

func TestTokenTamperBeatsExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t).WithClock(func() time.Time { return issued })

	token, err := codec.Issue("user-1", "", nil, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	// Even after the validity window, tampering dominates the verdict.
	codec.WithClock(func() time.Time { return issued.Add(time.Hour) })
	if _, err := codec.Decode(tampered); !errors.Is(err, ErrInvalidCapabilityToken) {
		t.Fatalf("expected ErrInvalidCapabilityToken, got %v", err)
	}
}

func TestTokenRejectsWrongKey(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewTokenCodec("another-secret-entirely", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, err := other.Issue("user-1", "", nil, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Decode(token); !errors.Is(err, ErrInvalidCapabilityToken) {
		t.Fatalf("expected ErrInvalidCapabilityToken, got %v", err)
	}
}

func TestTokenRejectsUnsignedAlg(t *testing.T) {
	codec := newTestCodec(t)

	claims := capabilityClaims{
		Roles: map[string]Role{"ws": RoleOwner},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := codec.Decode(unsigned); !errors.Is(err, ErrInvalidCapabilityToken) {
		t.Fatalf("expected ErrInvalidCapabilityToken for alg=none, got %v", err)
	}
}

func TestTokenRejectsForeignIssuer(t *testing.T) {
	codec := newTestCodec(t)

	claims := capabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Decode(token); !errors.Is(err, ErrInvalidCapabilityToken) {
		t.Fatalf("expected ErrInvalidCapabilityToken for foreign issuer, got %v", err)
	}
}

func TestTokenRejectsUnknownRoleClaim(t *testing.T) {
	codec := newTestCodec(t)

	claims := capabilityClaims{
		Roles: map[string]Role{"ws": Role("SUPERUSER")},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Decode(token); !errors.Is(err, ErrInvalidCapabilityToken) {
		t.Fatalf("expected ErrInvalidCapabilityToken for unknown role, got %v", err)
	}
}

func TestTokenEmptyRoleMapIsLegal(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Issue("user-1", "", map[string]Role{}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	payload, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(payload.Roles) != 0 {
		t.Fatalf("expected empty role map, got %v", payload.Roles)
	}
}
