package rate

import (
	"context"
	"strings"
	"time"
)

// Config holds limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	EnableRegisterThrottle bool
	MaxRegisterAttempts    int
	RegisterCooldown       time.Duration
}

// Limiter enforces per-identifier and per-IP budgets for failed logins and
// registration attempts.
type Limiter struct {
	counter Counter
	config  Config
}

// New creates a [Limiter] over counter.
func New(counter Counter, cfg Config) *Limiter {
	return &Limiter{
		counter: counter,
		config:  cfg,
	}
}

// CheckLogin checks whether the identifier+IP pair is within the failed
// login budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if err := l.checkCounter(ctx, loginUserKey(identifier), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login attempt for the identifier+IP pair.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	count, err := l.counter.Incr(ctx, loginUserKey(identifier), l.config.LoginCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.counter.Incr(ctx, loginIPKey(ip), l.config.LoginCooldownDuration)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is left alone so one good account cannot launder a sprayed IP.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	return l.counter.Del(ctx, loginUserKey(identifier))
}

// LoginAttempts returns the failed attempt count for identifier.
func (l *Limiter) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	n, err := l.counter.Get(ctx, loginUserKey(identifier))
	return int(n), err
}

// EnforceRegister counts a registration attempt and fails once the
// identifier or IP is over budget.
func (l *Limiter) EnforceRegister(ctx context.Context, identifier, ip string) error {
	if !l.config.EnableRegisterThrottle {
		return nil
	}
	if err := l.enforceKey(ctx, registerIdentifierKey(identifier)); err != nil {
		return err
	}
	if ip != "" {
		if err := l.enforceKey(ctx, registerIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.counter.Incr(ctx, key, l.config.RegisterCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRegisterAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.counter.Get(ctx, key)
	if err != nil {
		return err
	}
	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func loginUserKey(identifier string) string {
	return "al:" + normalizeIdentifier(identifier)
}

func loginIPKey(ip string) string {
	return "ali:" + ip
}

func registerIdentifierKey(identifier string) string {
	return "aca:" + normalizeIdentifier(identifier)
}

func registerIPKey(ip string) string {
	return "acaip:" + ip
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
