package password

import "errors"

var (
	// ErrInvalidHash is returned when a stored hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrUnsupportedAlgorithm is returned when no hasher recognises a stored hash.
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")
	// ErrPasswordTooLong is returned when plaintext exceeds the hasher's byte limit.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrEmptyPassword is returned when hashing an empty plaintext.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrWeak is returned by Policy.Validate.
	ErrWeak = errors.New("password does not satisfy policy")
)
