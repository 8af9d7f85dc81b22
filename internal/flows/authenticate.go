package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keystore"
	"go.uber.org/zap"
)

// AuthenticateMetrics carries metric IDs used by the authenticate flow.
type AuthenticateMetrics struct {
	AuthenticateSuccess int
	AuthenticateFailure int
	TokenMalformed      int
	TokenUnknownKey     int
	TokenBadSignature   int
	TokenExpired        int
	TokenNotYetValid    int
	TokenClaimMismatch  int
}

// AuthenticateEvents carries audit event names used by the authenticate flow.
type AuthenticateEvents struct {
	AuthenticateFailure string
}

// AuthenticateErrors carries host-level sentinel errors used by the authenticate flow.
type AuthenticateErrors struct {
	EngineNotReady error
}

// AuthenticateDeps captures authenticate dependencies.
type AuthenticateDeps struct {
	// AuditFailures emits an audit event for every rejected token.
	AuditFailures bool

	Check          func(string) jwt.Result
	ObserveLatency func(time.Duration)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics AuthenticateMetrics
	Events  AuthenticateEvents
	Errors  AuthenticateErrors
}

// RunAuthenticate verifies raw and returns the identity it carries. The
// verifier's typed error is returned unchanged.
func RunAuthenticate(ctx context.Context, raw string, deps AuthenticateDeps) (jwt.Identity, error) {
	normalizeAuthenticateDeps(&deps)
	if deps.Check == nil {
		return jwt.Identity{}, deps.Errors.EngineNotReady
	}

	start := time.Now()
	result := deps.Check(raw)
	if deps.ObserveLatency != nil {
		deps.ObserveLatency(time.Since(start))
	}

	if result.Valid() {
		deps.MetricInc(deps.Metrics.AuthenticateSuccess)
		return result.Identity, nil
	}

	reason, metric := classifyTokenError(result.Err, deps.Metrics)
	deps.MetricInc(deps.Metrics.AuthenticateFailure)
	if metric >= 0 {
		deps.MetricInc(metric)
	}
	deps.Logger.Debug("token rejected", zap.String("reason", reason), zap.Error(result.Err))
	if deps.AuditFailures {
		deps.EmitAudit(ctx, deps.Events.AuthenticateFailure, false, "", "", "", result.Err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
	}
	return jwt.Identity{}, result.Err
}

func classifyTokenError(err error, m AuthenticateMetrics) (string, int) {
	switch {
	case errors.Is(err, jwt.ErrMalformed):
		return "malformed", m.TokenMalformed
	case errors.Is(err, keystore.ErrUnknownKey):
		return "unknown_key", m.TokenUnknownKey
	case errors.Is(err, jwt.ErrBadSignature):
		return "bad_signature", m.TokenBadSignature
	case errors.Is(err, jwt.ErrExpired):
		return "expired", m.TokenExpired
	case errors.Is(err, jwt.ErrNotYetValid):
		return "not_yet_valid", m.TokenNotYetValid
	case errors.Is(err, jwt.ErrClaimMismatch):
		return "claim_mismatch", m.TokenClaimMismatch
	default:
		return "internal", -1
	}
}

func normalizeAuthenticateDeps(deps *AuthenticateDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
}
