package goToken

import "time"

// SecurityReport is a read-only summary of the engine's security posture,
// suitable for startup logs or an admin endpoint.
type SecurityReport struct {
	CurrentKeyID           string
	CurrentKeyAlgorithm    string
	InstalledKeys          int
	TokenLifetime          time.Duration
	ClockSkew              time.Duration
	IssuerEnforced         bool
	AudienceEnforced       bool
	Argon2                 PasswordConfigReport
	AcceptsLegacyBcrypt    bool
	UpgradeOnLogin         bool
	PolicyMinLength        int
	LoginThrottleActive    bool
	IPThrottleActive       bool
	RegisterThrottleActive bool
	AuditActive            bool
}

// PasswordConfigReport lists the Argon2id parameters used for new hashes.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport returns the current posture. Key fields reflect the key
// table at the time of the call.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	report := SecurityReport{
		TokenLifetime:    e.config.Token.Lifetime,
		ClockSkew:        e.config.Token.Skew,
		IssuerEnforced:   e.config.Token.Issuer != "",
		AudienceEnforced: e.config.Token.Audience != "",
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		AcceptsLegacyBcrypt:    e.config.Password.AcceptBcrypt,
		UpgradeOnLogin:         e.config.Password.UpgradeOnLogin,
		PolicyMinLength:        e.config.PasswordPolicy.MinLength,
		LoginThrottleActive:    e.rateLimiter != nil,
		IPThrottleActive:       e.rateLimiter != nil && e.config.RateLimit.EnableIPThrottle,
		RegisterThrottleActive: e.rateLimiter != nil && e.config.RateLimit.EnableRegisterThrottle,
		AuditActive:            e.audit != nil,
	}

	if e.keys != nil {
		table := e.keys.Snapshot()
		report.InstalledKeys = table.Len()
		if key, err := table.Current(e.now()); err == nil {
			report.CurrentKeyID = key.ID()
			report.CurrentKeyAlgorithm = string(key.Algorithm())
		}
	}

	return report
}
