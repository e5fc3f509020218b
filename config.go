package eduAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/eduAuth/store"
)

// Config holds every engine setting. Start from [DefaultConfig] and override
// what differs; [Builder.WithConfig] copies the value.
type Config struct {
	JWT            JWTConfig
	Password       PasswordConfig
	Session        SessionConfig
	TwoFactor      TwoFactorConfig
	PasswordReset  PasswordResetConfig
	Registration   RegistrationConfig
	Security       SecurityConfig
	Mail           MailConfig
	Challenge      ChallengeConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the token signature and lifetime. SigningMethod is
// "hs256" (PrivateKey is the shared secret) or "ed25519".
type JWTConfig struct {
	TokenTTL      time.Duration
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id costs and length bounds.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinLength        int
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig bounds the per-user session list.
type SessionConfig struct {
	MaxSessions int
	MaxAge      time.Duration
}

/*
====================================
TWO FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls emailed login codes.
type TwoFactorConfig struct {
	CodeTTL        time.Duration
	MaxAttempts    int
	ResendInterval time.Duration
	SweepInterval  time.Duration
	Namespace      string
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls emailed reset tokens.
type PasswordResetConfig struct {
	Enabled        bool
	TokenTTL       time.Duration
	MaxAttempts    int
	ResendInterval time.Duration
	Namespace      string
}

// RegistrationConfig restricts self-service sign up.
type RegistrationConfig struct {
	AllowedRoles []store.Role
	DefaultRole  store.Role
	SendWelcome  bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig enables the Redis failed-login throttle. It requires a
// Redis client.
type SecurityConfig struct {
	EnableLoginThrottle bool
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginWindow         time.Duration
}

// MailConfig bounds delivery and names the app in subjects.
type MailConfig struct {
	SendTimeout time.Duration
	AppName     string
}

// ChallengeConfig tunes the Redis challenge store. Retention keeps expired
// records readable for that long past expiry; zero means one sweep
// interval.
type ChallengeConfig struct {
	RedisPrefix string
	Retention   time.Duration
}

// AuditConfig controls audit buffering. SinkTimeout bounds each sink call;
// zero leaves it unbounded.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode decides what Validate checks beyond the token signature.
type ValidationMode int

const (
	// ModeInherit uses the engine's configured mode.
	ModeInherit ValidationMode = -1
	// ModeJWTOnly accepts any correctly signed, unexpired token.
	ModeJWTOnly ValidationMode = 0
	// ModeStrict also requires the session id to still be in the user's list.
	ModeStrict ValidationMode = 1
)

func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeJWTOnly:
		return "jwt_only"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("ValidationMode(%d)", int(m))
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the settings of the original deployment: 30 day
// tokens, 10 sessions, 6 digit codes valid 10 minutes with 3 attempts and a
// 60 second resend interval.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TokenTTL:      30 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "eduauth",
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MinLength:        6,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		Session: SessionConfig{
			MaxSessions: 10,
			MaxAge:      30 * 24 * time.Hour,
		},
		TwoFactor: TwoFactorConfig{
			CodeTTL:        10 * time.Minute,
			MaxAttempts:    3,
			ResendInterval: 60 * time.Second,
			SweepInterval:  5 * time.Minute,
			Namespace:      "e2fa",
		},
		PasswordReset: PasswordResetConfig{
			Enabled:        true,
			TokenTTL:       time.Hour,
			MaxAttempts:    3,
			ResendInterval: 60 * time.Second,
			Namespace:      "epwr",
		},
		Registration: RegistrationConfig{
			AllowedRoles: []store.Role{store.RoleStudent, store.RoleTeacher},
			DefaultRole:  store.RoleStudent,
			SendWelcome:  true,
		},
		Security: SecurityConfig{
			EnableLoginThrottle: false,
			EnableIPThrottle:    false,
			MaxLoginAttempts:    5,
			LoginWindow:         15 * time.Minute,
		},
		Mail: MailConfig{
			SendTimeout: 10 * time.Second,
			AppName:     "E-Learning App",
		},
		Challenge: ChallengeConfig{
			RedisPrefix: "ech",
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		ValidationMode: ModeJWTOnly,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Registration.AllowedRoles = append([]store.Role(nil), cfg.Registration.AllowedRoles...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.JWT.TokenTTL <= 0 {
		return errors.New("JWT TokenTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 PrivateKey must be >= 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

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
	if c.Password.MinLength <= 0 {
		return errors.New("Password MinLength must be > 0")
	}

	if c.Session.MaxSessions <= 0 {
		return errors.New("Session MaxSessions must be > 0")
	}
	if c.Session.MaxAge <= 0 {
		return errors.New("Session MaxAge must be > 0")
	}

	if c.TwoFactor.CodeTTL <= 0 {
		return errors.New("TwoFactor CodeTTL must be > 0")
	}
	if c.TwoFactor.MaxAttempts <= 0 || c.TwoFactor.MaxAttempts > 0xFFFF {
		return errors.New("TwoFactor MaxAttempts must be > 0")
	}
	if c.TwoFactor.ResendInterval < 0 {
		return errors.New("TwoFactor ResendInterval must be >= 0")
	}
	if c.TwoFactor.SweepInterval <= 0 {
		return errors.New("TwoFactor SweepInterval must be > 0")
	}
	if c.TwoFactor.Namespace == "" {
		return errors.New("TwoFactor Namespace must be set")
	}

	if c.PasswordReset.Enabled {
		if c.PasswordReset.TokenTTL <= 0 {
			return errors.New("PasswordReset TokenTTL must be > 0")
		}
		if c.PasswordReset.MaxAttempts <= 0 || c.PasswordReset.MaxAttempts > 0xFFFF {
			return errors.New("PasswordReset MaxAttempts must be > 0")
		}
		if c.PasswordReset.ResendInterval < 0 {
			return errors.New("PasswordReset ResendInterval must be >= 0")
		}
		if c.PasswordReset.Namespace == "" || c.PasswordReset.Namespace == c.TwoFactor.Namespace {
			return errors.New("PasswordReset Namespace must be set and differ from TwoFactor Namespace")
		}
	}

	if len(c.Registration.AllowedRoles) == 0 {
		return errors.New("Registration AllowedRoles must not be empty")
	}
	for _, role := range c.Registration.AllowedRoles {
		if !role.Valid() {
			return fmt.Errorf("Registration AllowedRoles contains unknown role %q", role)
		}
	}
	if !c.Registration.DefaultRole.Valid() {
		return errors.New("Registration DefaultRole is invalid")
	}

	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginWindow <= 0 {
			return errors.New("Security LoginWindow must be > 0")
		}
	}

	if c.Mail.SendTimeout <= 0 {
		return errors.New("Mail SendTimeout must be > 0")
	}
	if c.Challenge.Retention < 0 {
		return errors.New("Challenge Retention must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("ValidationMode must be ModeJWTOnly or ModeStrict")
	}

	return nil
}
