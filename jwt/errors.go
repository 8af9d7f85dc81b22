package jwt

import "errors"

var (
	// ErrMalformed is returned when a token cannot be parsed into header,
	// payload and signature, or required claims are missing.
	ErrMalformed = errors.New("malformed token")
	// ErrBadSignature is returned when the signature does not match the
	// header and payload under the resolved key.
	ErrBadSignature = errors.New("bad token signature")
	// ErrExpired is returned when now is past the exp claim.
	ErrExpired = errors.New("token expired")
	// ErrNotYetValid is returned when iat lies further in the future than the
	// allowed clock skew.
	ErrNotYetValid = errors.New("token not yet valid")
	// ErrClaimMismatch is returned when iss or aud differ from the configured values.
	ErrClaimMismatch = errors.New("token claim mismatch")
	// ErrInvalidIdentity is returned when an identity without subject is issued.
	ErrInvalidIdentity = errors.New("invalid identity")
)
