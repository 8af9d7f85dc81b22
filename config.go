package goToken

import (
	"errors"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/password"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override fields; [Builder.Build] validates it.
type Config struct {
	Token          TokenConfig
	Password       PasswordConfig
	PasswordPolicy password.Policy
	RateLimit      RateLimitConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls issuance and verification.
type TokenConfig struct {
	// Lifetime is added to iat to produce exp. Whole seconds, at least 1s.
	Lifetime time.Duration
	// Skew is the tolerance applied to iat during verification. Zero means
	// no tolerance; DefaultConfig starts from jwt.DefaultSkew.
	Skew time.Duration
	// Issuer and Audience are written into issued tokens and, when set,
	// required on verification.
	Issuer   string
	Audience string
}

func (c TokenConfig) verifierSkew() time.Duration {
	if c.Skew == 0 {
		return jwt.NoSkew
	}
	return c.Skew
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters used for new hashes.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// UpgradeOnLogin rewrites stored hashes that use weaker parameters or a
	// legacy scheme after a successful login.
	UpgradeOnLogin bool
	// AcceptBcrypt lets Login verify bcrypt hashes imported from another system.
	AcceptBcrypt bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls failed-login and registration throttling.
type RateLimitConfig struct {
	Enabled               bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	EnableRegisterThrottle bool
	MaxRegisterAttempts    int
	RegisterCooldown       time.Duration
}

/*
====================================
AUDIT AND METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// AuthenticateFailures emits an event for every rejected token. Off by
	// default since Authenticate is the hot path.
	AuthenticateFailures bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration suitable for production once a
// signing key is installed.
func DefaultConfig() Config {
	argon := password.DefaultArgon2Config()
	return Config{
		Token: TokenConfig{
			Lifetime: 15 * time.Minute,
			Skew:     jwt.DefaultSkew,
		},
		Password: PasswordConfig{
			Memory:           argon.Memory,
			Time:             argon.Time,
			Parallelism:      argon.Parallelism,
			SaltLength:       argon.SaltLength,
			KeyLength:        argon.KeyLength,
			MaxPasswordBytes: argon.MaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		PasswordPolicy: password.DefaultPolicy(),
		RateLimit: RateLimitConfig{
			Enabled:                true,
			EnableIPThrottle:       false,
			MaxLoginAttempts:       5,
			LoginCooldownDuration:  15 * time.Minute,
			EnableRegisterThrottle: true,
			MaxRegisterAttempts:    5,
			RegisterCooldown:       time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.PasswordPolicy.Deny != nil {
		out.PasswordPolicy.Deny = append([]string(nil), cfg.PasswordPolicy.Deny...)
	}
	return out
}

func (c PasswordConfig) argon2() password.Argon2Config {
	return password.Argon2Config{
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		MaxPasswordBytes: c.MaxPasswordBytes,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// Token
	if c.Token.Lifetime < time.Second {
		return errors.New("Token Lifetime must be >= 1s")
	}
	if c.Token.Lifetime%time.Second != 0 {
		return errors.New("Token Lifetime must be a whole number of seconds")
	}
	if c.Token.Skew < 0 {
		return errors.New("Token Skew must be >= 0")
	}
	if c.Token.Skew >= c.Token.Lifetime {
		return errors.New("Token Skew must be shorter than Lifetime")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Password policy
	if c.PasswordPolicy.MinLength < 1 {
		return errors.New("PasswordPolicy MinLength must be >= 1")
	}
	if c.PasswordPolicy.MaxLength > 0 && c.PasswordPolicy.MaxLength < c.PasswordPolicy.MinLength {
		return errors.New("PasswordPolicy MaxLength must be >= MinLength")
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.LoginCooldownDuration <= 0 {
			return errors.New("RateLimit LoginCooldownDuration must be > 0")
		}
		if c.RateLimit.EnableRegisterThrottle {
			if c.RateLimit.MaxRegisterAttempts <= 0 {
				return errors.New("RateLimit MaxRegisterAttempts must be > 0")
			}
			if c.RateLimit.RegisterCooldown <= 0 {
				return errors.New("RateLimit RegisterCooldown must be > 0")
			}
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
