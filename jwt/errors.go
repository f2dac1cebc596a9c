package jwt

import "errors"

var (
	ErrInvalidSecretEncoding = errors.New("jwt secret is not a valid hex string")
	ErrInvalidSecretLength   = errors.New("jwt secret must be exactly 32 bytes")
	ErrSecretFile            = errors.New("failed to read jwt secret file")

	ErrMalformedToken   = errors.New("malformed jwt")
	ErrInvalidSignature = errors.New("invalid jwt signature")
	ErrMalformedClaims  = errors.New("malformed jwt claims")
	ErrTokenExpired     = errors.New("jwt issued-at is outside of drift tolerance")
)
