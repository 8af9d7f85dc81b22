package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/keystore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeySource supplies the key table used for a single issue or verify call.
// *keystore.Store implements it.
type KeySource interface {
	Snapshot() *keystore.Table
}

// IssuerConfig configures an [Issuer].
type IssuerConfig struct {
	// Lifetime is exp minus iat. Must be a whole, positive number of seconds.
	Lifetime time.Duration
	Issuer   string
	Audience string
	Now      func() time.Time
	// NewID generates the jti claim. Defaults to uuid.NewString.
	NewID func() string
}

// Issuer mints tokens for authenticated identities with the current key.
type Issuer struct {
	keys  KeySource
	codec *Codec
	cfg   IssuerConfig
}

// NewIssuer validates cfg and returns an issuer bound to keys.
func NewIssuer(keys KeySource, codec *Codec, cfg IssuerConfig) (*Issuer, error) {
	if keys == nil {
		return nil, errors.New("issuer requires a key source")
	}
	if cfg.Lifetime < time.Second || cfg.Lifetime%time.Second != 0 {
		return nil, errors.New("token lifetime must be a positive whole number of seconds")
	}
	if codec == nil {
		codec = NewCodec()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	return &Issuer{keys: keys, codec: codec, cfg: cfg}, nil
}

// Lifetime returns the configured token lifetime.
func (i *Issuer) Lifetime() time.Duration { return i.cfg.Lifetime }

// Issue signs a token for identity with iat = now and exp = now + lifetime.
// identity.IssuedAt is ignored. Fails with keystore.ErrNoKeyConfigured when
// no current key is usable.
func (i *Issuer) Issue(identity Identity) (Token, error) {
	subject := strings.TrimSpace(identity.Subject)
	if subject == "" {
		return Token{}, ErrInvalidIdentity
	}

	now := i.cfg.Now()
	key, err := i.keys.Snapshot().Current(now)
	if err != nil {
		return Token{}, err
	}

	iat := unixUTC(now)
	exp := iat.Add(i.cfg.Lifetime)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(iat),
			ID:        i.cfg.NewID(),
		},
		Roles: NormalizeRoles(identity.Roles),
	}
	if i.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}

	raw, err := i.codec.Encode(claims, key)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Raw:       raw,
		KeyID:     key.ID(),
		ID:        claims.ID,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}
