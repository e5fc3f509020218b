package eduAuth

import "time"

// SecurityReport summarizes the security-relevant settings an engine runs
// with. It holds no secrets and is meant for startup logs.
type SecurityReport struct {
	SigningAlgorithm     string
	ValidationMode       ValidationMode
	TokenTTL             time.Duration
	Argon2               PasswordConfigReport
	MaxSessions          int
	CodeTTL              time.Duration
	CodeMaxAttempts      int
	CodeResendInterval   time.Duration
	LoginThrottleActive  bool
	IPThrottleActive     bool
	PasswordResetActive  bool
	AuditEnabled         bool
	DistributedChallenge bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		ValidationMode:   e.config.ValidationMode,
		TokenTTL:         e.config.JWT.TokenTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		MaxSessions:          e.config.Session.MaxSessions,
		CodeTTL:              e.config.TwoFactor.CodeTTL,
		CodeMaxAttempts:      e.config.TwoFactor.MaxAttempts,
		CodeResendInterval:   e.config.TwoFactor.ResendInterval,
		LoginThrottleActive:  e.rateLimiter != nil,
		IPThrottleActive:     e.rateLimiter != nil && e.config.Security.EnableIPThrottle,
		PasswordResetActive:  e.resets != nil,
		AuditEnabled:         e.audit != nil,
		DistributedChallenge: e.redis != nil,
	}
}
