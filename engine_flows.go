package goToken

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"go.uber.org/zap"
)

func (e *Engine) buildFlowDeps() flows.Deps {
	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	emitAudit := e.emitAudit

	deps := flows.Deps{
		Register: flows.RegisterDeps{
			ClientIPFromContext: ClientIPFromContext,
			CheckPolicy:         e.policy.Validate,
			HashPassword:        e.hasher.Hash,
			CreateUser: func(ctx context.Context, in flows.CreateUserInput) (flows.UserRecord, error) {
				created, err := e.userProvider.CreateUser(ctx, CreateUserInput{
					Identifier:   in.Identifier,
					PasswordHash: in.PasswordHash,
					Roles:        in.Roles,
				})
				if err != nil {
					return flows.UserRecord{}, err
				}
				return toFlowUser(created), nil
			},
			MetricInc: metricInc,
			EmitAudit: emitAudit,
			Logger:    e.logger,
			Metrics: flows.RegisterMetrics{
				RegisterSuccess:        int(MetricRegisterSuccess),
				RegisterFailure:        int(MetricRegisterFailure),
				RegisterDuplicate:      int(MetricRegisterDuplicate),
				RegisterWeakCredential: int(MetricRegisterWeakCredential),
				RegisterRateLimited:    int(MetricRegisterRateLimited),
			},
			Events: flows.RegisterEvents{
				RegisterSuccess:     auditEventRegisterSuccess,
				RegisterFailure:     auditEventRegisterFailure,
				RegisterDuplicate:   auditEventRegisterDuplicate,
				RegisterRateLimited: auditEventRegisterRateLimited,
			},
			Errors: flows.RegisterErrors{
				EngineNotReady:              ErrEngineNotReady,
				InvalidRegistration:         ErrInvalidRegistration,
				WeakCredential:              ErrWeakCredential,
				DuplicateIdentity:           ErrDuplicateIdentity,
				ProviderDuplicateIdentifier: ErrProviderDuplicateIdentifier,
				RegisterRateLimited:         ErrRegisterRateLimited,
			},
		},
		Login: flows.LoginDeps{
			PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
			ClientIPFromContext:    ClientIPFromContext,
			GetUserByIdentifier: func(ctx context.Context, identifier string) (flows.UserRecord, error) {
				u, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
				if err != nil {
					return flows.UserRecord{}, err
				}
				return toFlowUser(u), nil
			},
			UpdatePasswordHash:   e.userProvider.UpdatePasswordHash,
			VerifyPassword:       e.hasher.Verify,
			PasswordNeedsUpgrade: e.hasher.NeedsUpgrade,
			HashPassword:         e.hasher.Hash,
			DummyHash:            e.dummyHash,
			IssueToken: func(u flows.UserRecord) (jwt.Token, error) {
				return e.issuer.Issue(jwt.Identity{Subject: u.UserID, Roles: u.Roles})
			},
			MetricInc: metricInc,
			EmitAudit: emitAudit,
			Logger:    e.logger,
			Metrics: flows.LoginMetrics{
				LoginSuccess:         int(MetricLoginSuccess),
				LoginFailure:         int(MetricLoginFailure),
				LoginUnknownIdentity: int(MetricLoginUnknownIdentity),
				LoginRateLimited:     int(MetricLoginRateLimited),
				PasswordUpgraded:     int(MetricPasswordUpgraded),
				TokenIssued:          int(MetricTokenIssued),
			},
			Events: flows.LoginEvents{
				LoginSuccess:     auditEventLoginSuccess,
				LoginFailure:     auditEventLoginFailure,
				LoginRateLimited: auditEventLoginRateLimited,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:    ErrEngineNotReady,
				InvalidCredential: ErrInvalidCredential,
				UnknownIdentity:   ErrUnknownIdentity,
				UserNotFound:      ErrUserNotFound,
				LoginRateLimited:  ErrLoginRateLimited,
			},
		},
		Authenticate: flows.AuthenticateDeps{
			AuditFailures: e.config.Audit.AuthenticateFailures,
			Check:         e.verifier.Check,
			ObserveLatency: func(d time.Duration) {
				e.metrics.Observe(MetricAuthenticateLatency, d)
			},
			MetricInc: metricInc,
			EmitAudit: emitAudit,
			Logger:    e.logger,
			Metrics: flows.AuthenticateMetrics{
				AuthenticateSuccess: int(MetricAuthenticateSuccess),
				AuthenticateFailure: int(MetricAuthenticateFailure),
				TokenMalformed:      int(MetricTokenMalformed),
				TokenUnknownKey:     int(MetricTokenUnknownKey),
				TokenBadSignature:   int(MetricTokenBadSignature),
				TokenExpired:        int(MetricTokenExpired),
				TokenNotYetValid:    int(MetricTokenNotYetValid),
				TokenClaimMismatch:  int(MetricTokenClaimMismatch),
			},
			Events: flows.AuthenticateEvents{
				AuthenticateFailure: auditEventAuthenticateFailure,
			},
			Errors: flows.AuthenticateErrors{
				EngineNotReady: ErrEngineNotReady,
			},
		},
	}

	if e.rateLimiter != nil {
		limiter := e.rateLimiter
		deps.Login.CheckLoginRate = func(ctx context.Context, identifier, ip string) error {
			return e.mapLimiterError(limiter.CheckLogin(ctx, identifier, ip), ErrLoginRateLimited)
		}
		deps.Login.IncrementLoginRate = func(ctx context.Context, identifier, ip string) error {
			return e.mapLimiterError(limiter.IncrementLogin(ctx, identifier, ip), ErrLoginRateLimited)
		}
		deps.Login.ResetLoginRate = limiter.ResetLogin
		deps.Register.EnforceRegisterRate = limiter.EnforceRegister
		deps.Register.MapLimiterError = func(err error) error {
			return e.mapLimiterError(err, ErrRegisterRateLimited)
		}
	}

	return deps
}

// mapLimiterError turns limiter failures into limited. Backend failures fail
// closed.
func (e *Engine) mapLimiterError(err error, limited error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, rate.ErrRateLimited) {
		e.logger.Warn("rate limit backend unavailable", zap.Error(err))
	}
	return limited
}
