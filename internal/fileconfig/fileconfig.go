// Package fileconfig loads the gotoken service configuration from YAML,
// an optional .env file and GOTOKEN_* environment overrides.
package fileconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Keys      KeysConfig      `yaml:"keys"`
	Token     TokenConfig     `yaml:"token"`
	Password  PasswordConfig  `yaml:"password"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Users     UsersConfig     `yaml:"users"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

type StoreConfig struct {
	// Kind is "memory" or "postgres".
	Kind     string         `yaml:"kind"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// RedisConfig enables shared rate-limit counters when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KeysConfig struct {
	// Algorithm is "EdDSA" or "HS256".
	Algorithm string `yaml:"algorithm"`
	ID        string `yaml:"id"`
	// PrivateKeyFile holds a PKCS#8 PEM Ed25519 key. Empty generates one.
	PrivateKeyFile string `yaml:"private_key_file"`
	// Secret is the HS256 secret, at least 32 bytes.
	Secret string `yaml:"secret"`
	// RotationInterval enables periodic Ed25519 rotation when positive.
	RotationInterval time.Duration `yaml:"rotation_interval"`
	RotationOverlap  time.Duration `yaml:"rotation_overlap"`
}

type TokenConfig struct {
	Lifetime time.Duration `yaml:"lifetime"`
	Skew     time.Duration `yaml:"skew"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
}

type PasswordConfig struct {
	MinLength      int  `yaml:"min_length"`
	UpgradeOnLogin bool `yaml:"upgrade_on_login"`
	AcceptBcrypt   bool `yaml:"accept_bcrypt"`
}

type RateLimitConfig struct {
	Enabled             bool          `yaml:"enabled"`
	IPThrottle          bool          `yaml:"ip_throttle"`
	MaxLoginAttempts    int           `yaml:"max_login_attempts"`
	LoginCooldown       time.Duration `yaml:"login_cooldown"`
	RegisterThrottle    bool          `yaml:"register_throttle"`
	MaxRegisterAttempts int           `yaml:"max_register_attempts"`
	RegisterCooldown    time.Duration `yaml:"register_cooldown"`
}

type AuditConfig struct {
	Enabled              bool `yaml:"enabled"`
	BufferSize           int  `yaml:"buffer_size"`
	AuthenticateFailures bool `yaml:"authenticate_failures"`
}

type MetricsConfig struct {
	Enabled           bool `yaml:"enabled"`
	LatencyHistograms bool `yaml:"latency_histograms"`
}

type UsersConfig struct {
	DefaultRoles []string `yaml:"default_roles"`
}

// Default mirrors goToken.DefaultConfig with service-level settings added.
func Default() Config {
	eng := goToken.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log:   LogConfig{Env: "dev", Level: "info"},
		Store: StoreConfig{Kind: "memory", Postgres: PostgresConfig{MaxConns: 10, Migrate: true}},
		Keys: KeysConfig{
			Algorithm:       "EdDSA",
			ID:              "primary",
			RotationOverlap: eng.Token.Lifetime,
		},
		Token: TokenConfig{
			Lifetime: eng.Token.Lifetime,
			Skew:     eng.Token.Skew,
		},
		Password: PasswordConfig{
			MinLength:      eng.PasswordPolicy.MinLength,
			UpgradeOnLogin: eng.Password.UpgradeOnLogin,
		},
		RateLimit: RateLimitConfig{
			Enabled:             eng.RateLimit.Enabled,
			IPThrottle:          eng.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:    eng.RateLimit.MaxLoginAttempts,
			LoginCooldown:       eng.RateLimit.LoginCooldownDuration,
			RegisterThrottle:    eng.RateLimit.EnableRegisterThrottle,
			MaxRegisterAttempts: eng.RateLimit.MaxRegisterAttempts,
			RegisterCooldown:    eng.RateLimit.RegisterCooldown,
		},
		Audit:   AuditConfig{BufferSize: eng.Audit.BufferSize},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads path over [Default], expanding ${VAR} references, then applies
// GOTOKEN_* overrides. An empty path yields defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := Parse(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse expands environment references in b and decodes it into cfg.
// Fields absent from b keep their current values.
func Parse(b []byte, cfg *Config) error {
	expanded := os.Expand(string(b), func(key string) string {
		name, def, hasDef := strings.Cut(key, ":-")
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasDef {
			return def
		}
		return ""
	})
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("GOTOKEN_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("GOTOKEN_LOG_ENV"); ok {
		c.Log.Env = v
	}
	if v, ok := getEnvStr("GOTOKEN_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("GOTOKEN_STORE"); ok {
		c.Store.Kind = v
	}
	if v, ok := getEnvStr("GOTOKEN_POSTGRES_DSN"); ok {
		c.Store.Postgres.DSN = v
	}
	if v, ok := getEnvStr("GOTOKEN_REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("GOTOKEN_REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("GOTOKEN_REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("GOTOKEN_KEY_ALGORITHM"); ok {
		c.Keys.Algorithm = v
	}
	if v, ok := getEnvStr("GOTOKEN_KEY_ID"); ok {
		c.Keys.ID = v
	}
	if v, ok := getEnvStr("GOTOKEN_PRIVATE_KEY_FILE"); ok {
		c.Keys.PrivateKeyFile = v
	}
	if v, ok := getEnvStr("GOTOKEN_HMAC_SECRET"); ok {
		c.Keys.Secret = v
	}
	if v, ok := getEnvDur("GOTOKEN_TOKEN_LIFETIME"); ok {
		c.Token.Lifetime = v
	}
	if v, ok := getEnvStr("GOTOKEN_ISSUER"); ok {
		c.Token.Issuer = v
	}
	if v, ok := getEnvStr("GOTOKEN_AUDIENCE"); ok {
		c.Token.Audience = v
	}
	if v, ok := getEnvBool("GOTOKEN_RATE_LIMIT_ENABLED"); ok {
		c.RateLimit.Enabled = v
	}
	if v, ok := getEnvBool("GOTOKEN_AUDIT_ENABLED"); ok {
		c.Audit.Enabled = v
	}
	if v, ok := getEnvBool("GOTOKEN_METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func getEnvBool(key string) (bool, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

func getEnvDur(key string) (time.Duration, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	return d, err == nil
}

// Validate checks the service-level settings. Engine settings are checked
// again by goToken's Builder.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Store.Kind {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("store.kind %q must be memory or postgres", c.Store.Kind)
	}
	switch strings.ToUpper(c.Keys.Algorithm) {
	case "EDDSA":
	case "HS256":
		if len(c.Keys.Secret) < 32 {
			return errors.New("keys.secret must be at least 32 bytes for HS256")
		}
		if c.Keys.RotationInterval > 0 {
			return errors.New("keys.rotation_interval requires EdDSA")
		}
	default:
		return fmt.Errorf("keys.algorithm %q must be EdDSA or HS256", c.Keys.Algorithm)
	}
	// A retired key only has to outlive the last token it signed; skew
	// loosens iat, never exp.
	if c.Keys.RotationInterval > 0 && c.Keys.RotationOverlap < c.Token.Lifetime {
		return errors.New("keys.rotation_overlap must cover the token lifetime")
	}
	return nil
}

// Engine maps the file settings onto a goToken configuration.
func (c Config) Engine() goToken.Config {
	cfg := goToken.DefaultConfig()
	cfg.Token.Lifetime = c.Token.Lifetime
	cfg.Token.Skew = c.Token.Skew
	cfg.Token.Issuer = c.Token.Issuer
	cfg.Token.Audience = c.Token.Audience

	cfg.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin
	cfg.Password.AcceptBcrypt = c.Password.AcceptBcrypt
	if c.Password.MinLength > 0 {
		cfg.PasswordPolicy.MinLength = c.Password.MinLength
	}

	cfg.RateLimit.Enabled = c.RateLimit.Enabled
	cfg.RateLimit.EnableIPThrottle = c.RateLimit.IPThrottle
	cfg.RateLimit.MaxLoginAttempts = c.RateLimit.MaxLoginAttempts
	cfg.RateLimit.LoginCooldownDuration = c.RateLimit.LoginCooldown
	cfg.RateLimit.EnableRegisterThrottle = c.RateLimit.RegisterThrottle
	cfg.RateLimit.MaxRegisterAttempts = c.RateLimit.MaxRegisterAttempts
	cfg.RateLimit.RegisterCooldown = c.RateLimit.RegisterCooldown

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.AuthenticateFailures = c.Audit.AuthenticateFailures

	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.LatencyHistograms
	return cfg
}
