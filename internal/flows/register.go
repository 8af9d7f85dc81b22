package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"go.uber.org/zap"
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Identifier string
	Password   string
	Roles      []string
}

// UserRecord is the flow-local view of a persisted user.
type UserRecord struct {
	UserID       string
	Identifier   string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// CreateUserInput is what the provider receives on registration.
type CreateUserInput struct {
	Identifier   string
	PasswordHash string
	Roles        []string
}

// RegisterMetrics carries metric IDs used by the register flow.
type RegisterMetrics struct {
	RegisterSuccess        int
	RegisterFailure        int
	RegisterDuplicate      int
	RegisterWeakCredential int
	RegisterRateLimited    int
}

// RegisterEvents carries audit event names used by the register flow.
type RegisterEvents struct {
	RegisterSuccess     string
	RegisterFailure     string
	RegisterDuplicate   string
	RegisterRateLimited string
}

// RegisterErrors carries host-level sentinel errors used by the register flow.
type RegisterErrors struct {
	EngineNotReady              error
	InvalidRegistration         error
	WeakCredential              error
	DuplicateIdentity           error
	ProviderDuplicateIdentifier error
	RegisterRateLimited         error
}

// RegisterDeps captures register dependencies.
type RegisterDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckPolicy         func(string) error
	EnforceRegisterRate func(context.Context, string, string) error
	MapLimiterError     func(error) error

	HashPassword func(string) (string, error)
	CreateUser   func(context.Context, CreateUserInput) (UserRecord, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister validates the password against policy, hashes it and creates
// the user through the provider.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (UserRecord, error) {
	normalizeRegisterDeps(&deps)
	if deps.HashPassword == nil || deps.CreateUser == nil {
		return UserRecord{}, deps.Errors.EngineNotReady
	}

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", "", deps.Errors.InvalidRegistration, func() map[string]string {
			return map[string]string{
				"reason": "empty_identifier",
			}
		})
		return UserRecord{}, deps.Errors.InvalidRegistration
	}

	if deps.CheckPolicy != nil {
		if err := deps.CheckPolicy(req.Password); err != nil {
			if !errors.Is(err, deps.Errors.WeakCredential) {
				err = fmt.Errorf("%w: %v", deps.Errors.WeakCredential, err)
			}
			deps.MetricInc(deps.Metrics.RegisterWeakCredential)
			deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", identifier, "", err, func() map[string]string {
				return map[string]string{
					"reason": "weak_credential",
				}
			})
			return UserRecord{}, err
		}
	}

	if deps.EnforceRegisterRate != nil {
		if err := deps.EnforceRegisterRate(ctx, identifier, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.RegisterRateLimited) {
				deps.MetricInc(deps.Metrics.RegisterRateLimited)
				deps.EmitAudit(ctx, deps.Events.RegisterRateLimited, false, "", identifier, "", mapped, nil)
			}
			return UserRecord{}, mapped
		}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.Logger.Error("password hashing failed", zap.String("identifier", identifier), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", identifier, "", err, func() map[string]string {
			return map[string]string{
				"reason": "hash_failed",
			}
		})
		return UserRecord{}, fmt.Errorf("hash password: %w", err)
	}
	req.Password = ""
	roles := jwt.NormalizeRoles(req.Roles)

	created, err := deps.CreateUser(ctx, CreateUserInput{
		Identifier:   identifier,
		PasswordHash: hash,
		Roles:        roles,
	})
	if err != nil {
		if deps.Errors.ProviderDuplicateIdentifier != nil && errors.Is(err, deps.Errors.ProviderDuplicateIdentifier) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.RegisterDuplicate, false, "", identifier, "", deps.Errors.DuplicateIdentity, nil)
			return UserRecord{}, deps.Errors.DuplicateIdentity
		}
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.Logger.Error("user creation failed", zap.String("identifier", identifier), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", identifier, "", err, func() map[string]string {
			return map[string]string{
				"reason": "provider_create_failed",
			}
		})
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}
	if created.Identifier == "" {
		created.Identifier = identifier
	}
	created.Roles = jwt.NormalizeRoles(created.Roles)
	if len(created.Roles) == 0 {
		created.Roles = roles
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, created.UserID, identifier, "", nil, func() map[string]string {
		return map[string]string{
			"roles": strings.Join(created.Roles, ","),
		}
	})
	return created, nil
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.RegisterRateLimited }
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
