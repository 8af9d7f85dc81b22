package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goToken/jwt"
	"go.uber.org/zap"
)

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	LoginSuccess         int
	LoginFailure         int
	LoginUnknownIdentity int
	LoginRateLimited     int
	PasswordUpgraded     int
	TokenIssued          int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady    error
	InvalidCredential error
	UnknownIdentity   error
	UserNotFound      error
	LoginRateLimited  error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool

	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string) error

	GetUserByIdentifier func(context.Context, string) (UserRecord, error)
	UpdatePasswordHash  func(context.Context, string, string) error

	VerifyPassword       func(string, string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	// DummyHash is verified against when the identifier is unknown so that
	// both failure paths pay for one hash verification.
	DummyHash string

	IssueToken func(UserRecord) (jwt.Token, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin verifies identifier and password and issues a token on success.
//
// An unknown identifier fails with Errors.UnknownIdentity; the caller is
// expected to collapse it with Errors.InvalidCredential before returning it
// to clients.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) (jwt.Token, error) {
	normalizeLoginDeps(&deps)
	if deps.GetUserByIdentifier == nil || deps.VerifyPassword == nil || deps.IssueToken == nil {
		return jwt.Token{}, deps.Errors.EngineNotReady
	}

	identifier = strings.TrimSpace(identifier)
	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			return jwt.Token{}, rateLimited(ctx, &deps, "", identifier, err)
		}
	}

	fail := func(userID, reason string, err error) error {
		if deps.IncrementLoginRate != nil {
			if rerr := deps.IncrementLoginRate(ctx, identifier, ip); rerr != nil {
				return rateLimited(ctx, &deps, userID, identifier, rerr)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, identifier, "", err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return err
	}

	if identifier == "" {
		return jwt.Token{}, fail("", "empty_identifier", deps.Errors.InvalidCredential)
	}
	if password == "" {
		return jwt.Token{}, fail("", "empty_password", deps.Errors.InvalidCredential)
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if deps.Errors.UserNotFound != nil && errors.Is(err, deps.Errors.UserNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(password, deps.DummyHash)
			}
			deps.MetricInc(deps.Metrics.LoginUnknownIdentity)
			return jwt.Token{}, fail("", "unknown_identity", deps.Errors.UnknownIdentity)
		}
		deps.Logger.Error("user lookup failed", zap.String("identifier", identifier), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", identifier, "", err, func() map[string]string {
			return map[string]string{
				"reason": "provider_lookup_failed",
			}
		})
		return jwt.Token{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Logger.Warn("stored password hash rejected", zap.String("user_id", user.UserID), zap.Error(err))
		return jwt.Token{}, fail(user.UserID, "hash_unreadable", deps.Errors.InvalidCredential)
	}
	if !ok {
		return jwt.Token{}, fail(user.UserID, "password_mismatch", deps.Errors.InvalidCredential)
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		upgradePassword(ctx, &deps, user, password)
	}
	password = ""

	token, err := deps.IssueToken(user)
	if err != nil {
		deps.Logger.Error("token issuance failed", zap.String("user_id", user.UserID), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.UserID, identifier, "", err, func() map[string]string {
			return map[string]string{
				"reason": "issue_failed",
			}
		})
		return jwt.Token{}, err
	}
	deps.MetricInc(deps.Metrics.TokenIssued)

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier); err != nil {
			deps.Logger.Warn("login rate reset failed", zap.String("identifier", identifier), zap.Error(err))
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, identifier, token.KeyID, nil, func() map[string]string {
		return map[string]string{
			"jti": token.ID,
		}
	})
	return token, nil
}

func upgradePassword(ctx context.Context, deps *LoginDeps, user UserRecord, password string) {
	needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needsUpgrade {
		return
	}
	upgraded, err := deps.HashPassword(password)
	if err != nil {
		deps.Logger.Warn("password hash upgrade generation failed", zap.String("user_id", user.UserID), zap.Error(err))
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, upgraded); err != nil {
		deps.Logger.Warn("password hash upgrade update failed", zap.String("user_id", user.UserID), zap.Error(err))
		return
	}
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
}

// rateLimited records a throttled attempt. Limiter backend errors fail closed.
func rateLimited(ctx context.Context, deps *LoginDeps, userID, identifier string, cause error) error {
	deps.Logger.Debug("login throttled", zap.String("identifier", identifier), zap.Error(cause))
	deps.MetricInc(deps.Metrics.LoginRateLimited)
	deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, userID, identifier, "", deps.Errors.LoginRateLimited, nil)
	return deps.Errors.LoginRateLimited
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
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
