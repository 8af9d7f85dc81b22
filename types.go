package goToken

import (
	"context"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keystore"
)

// Identity is the verified subject of a token: its subject, its roles and
// the time the token was issued.
type Identity = jwt.Identity

// Token is a signed, time-bounded credential returned by [Engine.Login].
type Token = jwt.Token

// KeyInfo is the metadata of an installed signing key.
type KeyInfo = keystore.KeyInfo

// UserProvider is the persistence interface callers implement to integrate
// goToken with their user database.
//
// GetUserByIdentifier must return (or wrap) [ErrUserNotFound] when no user
// matches; CreateUser must return (or wrap) [ErrProviderDuplicateIdentifier]
// when the identifier is taken. Any other error is treated as an I/O failure
// and passed through wrapped.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

// PasswordHasher produces and verifies stored password hashes. Verify
// returns (false, nil) on mismatch; an error means the stored hash could not
// be used.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// UserRecord is the account record returned by [UserProvider]. UserID
// becomes the token subject.
type UserRecord struct {
	UserID       string
	Identifier   string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Identifier   string
	PasswordHash string
	Roles        []string
}

// RegisterRequest is the input for [Engine.Register]. Identifier and
// Password are required.
type RegisterRequest struct {
	Identifier string
	Password   string
	Roles      []string
}
