package jwt

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// DefaultSkew is the tolerance applied to iat when none is configured.
const DefaultSkew = 5 * time.Second

// NoSkew in [VerifierConfig.Skew] rejects any iat after now.
const NoSkew time.Duration = -1

// VerifierConfig configures a [Verifier].
type VerifierConfig struct {
	// Skew tolerates an iat up to this far in the future. Zero selects
	// DefaultSkew; NoSkew disables the tolerance.
	Skew time.Duration
	// Issuer and Audience, when set, must match the iss and aud claims.
	Issuer   string
	Audience string
	Now      func() time.Time
}

// Result is the outcome of a verification. It is never partially valid:
// when Err is set, Identity is zero.
type Result struct {
	Identity Identity
	Err      error
}

// Valid reports whether verification succeeded.
func (r Result) Valid() bool { return r.Err == nil }

// Verifier checks tokens against the key table.
type Verifier struct {
	keys  KeySource
	codec *Codec
	cfg   VerifierConfig
}

// NewVerifier validates cfg and returns a verifier bound to keys.
func NewVerifier(keys KeySource, codec *Codec, cfg VerifierConfig) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("verifier requires a key source")
	}
	switch {
	case cfg.Skew == NoSkew:
		cfg.Skew = 0
	case cfg.Skew < 0:
		return nil, errors.New("clock skew must not be negative")
	case cfg.Skew == 0:
		cfg.Skew = DefaultSkew
	}
	if codec == nil {
		codec = NewCodec()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	return &Verifier{keys: keys, codec: codec, cfg: cfg}, nil
}

// Verify returns the identity carried by raw, or the first failing check's error.
func (v *Verifier) Verify(raw string) (Identity, error) {
	r := v.Check(raw)
	return r.Identity, r.Err
}

// Check runs decode, key resolution, signature, time and claim checks in
// that order and stops at the first failure.
func (v *Verifier) Check(raw string) Result {
	now := v.cfg.Now()
	table := v.keys.Snapshot()

	d, err := v.codec.Decode(raw)
	if err != nil {
		return Result{Err: err}
	}

	key, err := table.Lookup(d.Header.KeyID, now)
	if err != nil {
		return Result{Err: err}
	}

	if !v.codec.VerifySignature(d, key) {
		return Result{Err: ErrBadSignature}
	}

	c := d.Claims
	if now.After(c.ExpiresAt.Time) {
		return Result{Err: ErrExpired}
	}
	if now.Before(c.IssuedAt.Add(-v.cfg.Skew)) {
		return Result{Err: ErrNotYetValid}
	}

	if v.cfg.Issuer != "" && c.Issuer != v.cfg.Issuer {
		return Result{Err: ErrClaimMismatch}
	}
	if v.cfg.Audience != "" && !slices.Contains(c.Audience, v.cfg.Audience) {
		return Result{Err: ErrClaimMismatch}
	}

	return Result{Identity: Identity{
		Subject:  c.Subject,
		Roles:    NormalizeRoles(c.Roles),
		IssuedAt: unixUTC(c.IssuedAt.Time),
	}}
}
