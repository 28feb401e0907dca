package auth

import "errors"

// One sentinel per authorization failure kind. Producers return these
// directly; the HTTP boundary maps each to a stable machine-readable code.
// No caller classifies failures by message text.
var (
	ErrInvalidInput = errors.New("auth: invalid input")

	ErrMissingIdentityToken   = errors.New("auth: identity token is required")
	ErrMissingCapabilityToken = errors.New("auth: capability token is required")
	ErrInvalidIdentityToken   = errors.New("auth: identity token is invalid or expired")
	ErrExpiredCapabilityToken = errors.New("auth: capability token has expired")
	ErrInvalidCapabilityToken = errors.New("auth: capability token is invalid")
	ErrSubjectMismatch        = errors.New("auth: identity and capability subjects differ")
	ErrNotAMember             = errors.New("auth: no access to this workspace")
	ErrInsufficientRole       = errors.New("auth: role does not permit this operation")
	ErrDirectoryUnavailable   = errors.New("auth: role directory unavailable")
)
