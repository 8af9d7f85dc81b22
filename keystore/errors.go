package keystore

import "errors"

var (
	// ErrNoKeyConfigured is returned when no current issuance key is installed.
	ErrNoKeyConfigured = errors.New("no signing key configured")
	// ErrUnknownKey is returned when a key id is absent or outside its validity window.
	ErrUnknownKey = errors.New("unknown signing key")
	// ErrKeyNotSigning is returned when a verify-only key is used for signing.
	ErrKeyNotSigning = errors.New("key cannot sign")
	// ErrKeyNotValid is returned when a key installed as current is not valid now.
	ErrKeyNotValid = errors.New("key outside validity window")
	// ErrDuplicateKey is returned when a different key with the same id is already installed.
	ErrDuplicateKey = errors.New("duplicate key id")
	// ErrInvalidKey is returned for malformed key material or metadata.
	ErrInvalidKey = errors.New("invalid signing key")
)
