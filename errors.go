package goToken

import (
	"errors"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keystore"
	"github.com/MrEthical07/goToken/password"
)

// Token and key errors are owned by the packages that produce them; they are
// re-exported here so callers can match everything with errors.Is against a
// single package.
var (
	// ErrNoKeyConfigured is returned by Login when no current signing key is installed.
	ErrNoKeyConfigured = keystore.ErrNoKeyConfigured
	// ErrUnknownKey is returned by Authenticate when the token's kid is not installed or no longer valid.
	ErrUnknownKey = keystore.ErrUnknownKey
	// ErrKeyNotSigning is returned by RotateKey for verify-only keys.
	ErrKeyNotSigning = keystore.ErrKeyNotSigning
	// ErrKeyNotValid is returned by RotateKey when the key's window excludes now.
	ErrKeyNotValid = keystore.ErrKeyNotValid
	// ErrDuplicateKey is returned when a different key with the same id is installed.
	ErrDuplicateKey = keystore.ErrDuplicateKey

	// ErrMalformed is returned by Authenticate for tokens that do not parse.
	ErrMalformed = jwt.ErrMalformed
	// ErrBadSignature is returned by Authenticate when the signature does not verify.
	ErrBadSignature = jwt.ErrBadSignature
	// ErrExpired is returned by Authenticate when now is past the token's exp.
	ErrExpired = jwt.ErrExpired
	// ErrNotYetValid is returned by Authenticate when iat is further ahead than the allowed skew.
	ErrNotYetValid = jwt.ErrNotYetValid
	// ErrClaimMismatch is returned by Authenticate when iss or aud do not match the configuration.
	ErrClaimMismatch = jwt.ErrClaimMismatch
	// ErrInvalidIdentity is returned when a token is requested for an empty subject.
	ErrInvalidIdentity = jwt.ErrInvalidIdentity

	// ErrWeakCredential is returned by Register when the password fails policy.
	ErrWeakCredential = password.ErrWeak
)

var (
	// ErrDuplicateIdentity is returned by Register when the identifier is taken.
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrInvalidRegistration is returned by Register for an empty identifier.
	ErrInvalidRegistration = errors.New("invalid registration request")
	// ErrUnknownIdentity marks a login for an identifier the provider does not
	// know. The Engine never returns it; it is collapsed into ErrInvalidCredential.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrInvalidCredential is returned by Login for a wrong password or an unknown identifier.
	ErrInvalidCredential = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned by Login when the failed-attempt budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRegisterRateLimited is returned by Register when the registration budget is exhausted.
	ErrRegisterRateLimited = errors.New("registration rate limited")
	// ErrEngineNotReady is returned when an Engine was not built through Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrUserNotFound must be returned (or wrapped) by UserProvider.GetUserByIdentifier
	// when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrProviderDuplicateIdentifier must be returned (or wrapped) by
	// UserProvider.CreateUser when the identifier already exists.
	ErrProviderDuplicateIdentifier = errors.New("provider duplicate identifier")
)
