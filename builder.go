package goToken

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keystore"
	"github.com/MrEthical07/goToken/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// dummyPassword is hashed once at build time; logins for unknown
// identifiers verify against the result.
const dummyPassword = "goToken/unknown-identity"

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	keys         *keystore.Store
	userProvider UserProvider
	hasher       PasswordHasher
	auditSink    AuditSink
	logger       *zap.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithKeyStore sets the key store used for issuance and verification.
// Required.
func (b *Builder) WithKeyStore(keys *keystore.Store) *Builder {
	b.keys = keys
	return b
}

// WithUserProvider sets the persistence collaborator. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasswordHasher overrides the Argon2id hasher derived from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithRedis stores rate-limit counters in Redis so limits hold across
// instances. Without it counters live in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the audit sink. Auditing also requires Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for issuance, verification, key rotation
// through [Engine.RotateKey] and audit timestamps. The key store keeps its
// own clock for its direct methods.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.keys == nil {
		return nil, errors.New("key store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:       cfg,
		keys:         b.keys,
		userProvider: b.userProvider,
		policy:       cfg.PasswordPolicy,
		logger:       logger.Named("gotoken"),
		clock:        clock,
	}

	// -------- PASSWORD HASHING --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(cfg.Password.argon2())
		if err != nil {
			return nil, err
		}
		hasher = ph
		if cfg.Password.AcceptBcrypt {
			legacy, err := password.NewBcrypt(0)
			if err != nil {
				return nil, err
			}
			hasher = password.NewMigrating(ph, legacy)
		}
	}
	engine.hasher = hasher

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	engine.dummyHash = dummy

	// -------- TOKENS --------
	codec := jwt.NewCodec()
	issuer, err := jwt.NewIssuer(b.keys, codec, jwt.IssuerConfig{
		Lifetime: cfg.Token.Lifetime,
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		Now:      clock,
	})
	if err != nil {
		return nil, err
	}
	verifier, err := jwt.NewVerifier(b.keys, codec, jwt.VerifierConfig{
		Skew:     cfg.Token.verifierSkew(),
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		Now:      clock,
	})
	if err != nil {
		return nil, err
	}
	engine.issuer = issuer
	engine.verifier = verifier

	// -------- RATE LIMITING --------
	if cfg.RateLimit.Enabled {
		var counter rate.Counter
		if b.redis != nil {
			counter = rate.NewRedisCounter(b.redis)
		} else {
			counter = rate.NewMemoryCounter(time.Minute)
			engine.logger.Info("rate limit counters are in-process; limits are per instance")
		}
		engine.rateLimiter = rate.New(counter, rate.Config{
			EnableIPThrottle:       cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:       cfg.RateLimit.MaxLoginAttempts,
			LoginCooldownDuration:  cfg.RateLimit.LoginCooldownDuration,
			EnableRegisterThrottle: cfg.RateLimit.EnableRegisterThrottle,
			MaxRegisterAttempts:    cfg.RateLimit.MaxRegisterAttempts,
			RegisterCooldown:       cfg.RateLimit.RegisterCooldown,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     engine.logger,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flowDeps = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
