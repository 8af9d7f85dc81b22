package goToken

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keystore"
	"github.com/MrEthical07/goToken/password"
	"go.uber.org/zap"
)

// Engine registers users, logs them in and authenticates their tokens.
// It is safe for concurrent use after [Builder.Build].
type Engine struct {
	config       Config
	keys         *keystore.Store
	issuer       *jwt.Issuer
	verifier     *jwt.Verifier
	rateLimiter  *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	hasher       PasswordHasher
	policy       password.Policy
	userProvider UserProvider
	logger       *zap.Logger
	clock        func() time.Time
	dummyHash    string
	flowDeps     flows.Deps
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Register checks the password against the configured policy, hashes it and
// creates the user. It fails with [ErrWeakCredential] before hashing, with
// [ErrDuplicateIdentity] when the identifier is taken and with
// [ErrRegisterRateLimited] when registration throttling triggers.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}
	created, err := flows.RunRegister(ctx, flows.RegisterRequest{
		Identifier: req.Identifier,
		Password:   req.Password,
		Roles:      req.Roles,
	}, e.flowDeps.Register)
	if err != nil {
		return UserRecord{}, err
	}
	return fromFlowUser(created), nil
}

// Login verifies identifier and password and returns a freshly issued token.
//
// A wrong password and an unknown identifier both fail with
// [ErrInvalidCredential]; the distinction is recorded only in logs, metrics
// and audit events. Provider I/O errors are returned wrapped.
func (e *Engine) Login(ctx context.Context, identifier, password string) (Token, error) {
	if e == nil {
		return Token{}, ErrEngineNotReady
	}
	tok, err := flows.RunLogin(ctx, identifier, password, e.flowDeps.Login)
	if err != nil {
		if errors.Is(err, ErrUnknownIdentity) {
			return Token{}, ErrInvalidCredential
		}
		return Token{}, err
	}
	return tok, nil
}

// Authenticate verifies a raw token and returns the identity it carries, or
// one of [ErrMalformed], [ErrUnknownKey], [ErrBadSignature], [ErrExpired],
// [ErrNotYetValid] or [ErrClaimMismatch]. It performs no I/O.
func (e *Engine) Authenticate(ctx context.Context, token string) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}
	return flows.RunAuthenticate(ctx, token, e.flowDeps.Authenticate)
}

// RotateKey installs key as the current signing key. Tokens signed by the
// previous key keep verifying until that key's own window ends. The key's
// window is checked against the engine clock, the same one Login and
// Authenticate use.
func (e *Engine) RotateKey(ctx context.Context, key *keystore.SigningKey) error {
	if e == nil || e.keys == nil {
		return ErrEngineNotReady
	}
	previous := e.keys.Snapshot().CurrentID()
	if err := e.keys.RotateAt(key, e.clock()); err != nil {
		e.emitAudit(ctx, auditEventKeyRotated, false, "", "", keyIDOf(key), err, nil)
		return err
	}
	e.metricInc(MetricKeyRotated)
	e.emitAudit(ctx, auditEventKeyRotated, true, "", "", key.ID(), nil, func() map[string]string {
		return map[string]string{
			"previous_kid": previous,
			"alg":          string(key.Algorithm()),
		}
	})
	return nil
}

// Keys returns metadata for every installed signing key.
func (e *Engine) Keys() []KeyInfo {
	if e == nil || e.keys == nil {
		return nil
	}
	return e.keys.Keys()
}

// JWKS renders the public Ed25519 keys as a JSON Web Key Set.
func (e *Engine) JWKS() ([]byte, error) {
	if e == nil || e.keys == nil {
		return nil, ErrEngineNotReady
	}
	return e.keys.JWKS()
}

// TokenLifetime returns the configured token lifetime.
func (e *Engine) TokenLifetime() time.Duration {
	if e == nil {
		return 0
	}
	return e.config.Token.Lifetime
}

func keyIDOf(key *keystore.SigningKey) string {
	if key == nil {
		return ""
	}
	return key.ID()
}

func fromFlowUser(u flows.UserRecord) UserRecord {
	return UserRecord{
		UserID:       u.UserID,
		Identifier:   u.Identifier,
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles,
		CreatedAt:    u.CreatedAt,
	}
}

func toFlowUser(u UserRecord) flows.UserRecord {
	return flows.UserRecord{
		UserID:       u.UserID,
		Identifier:   u.Identifier,
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles,
		CreatedAt:    u.CreatedAt,
	}
}
