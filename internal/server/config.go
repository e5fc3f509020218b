package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/mail"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Config is the service configuration. Keys map to EDUAUTH_<SECTION>_<KEY>
// environment variables; a few older names are bound too (see legacyEnv).
type Config struct {
	Env      string         `mapstructure:"env"`
	LogLevel string         `mapstructure:"log_level"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// HTTPConfig.TrustProxy takes client addresses from forwarding headers.
// Leave it off unless a proxy in front overwrites them.
type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
}

// Addr is the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig leaves Addr empty to keep pending codes in process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SMTPConfig leaves Host empty to log outgoing mail instead of sending it.
type SMTPConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	User   string `mapstructure:"user"`
	Pass   string `mapstructure:"pass"`
	Secure bool   `mapstructure:"secure"`
	From   string `mapstructure:"from"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	ValidationMode string        `mapstructure:"validation_mode"`
	AppName        string        `mapstructure:"app_name"`
	LoginThrottle  bool          `mapstructure:"login_throttle"`
	IPThrottle     bool          `mapstructure:"ip_throttle"`
	Audit          bool          `mapstructure:"audit"`
	SendWelcome    bool          `mapstructure:"send_welcome"`
	MaxSessions    int           `mapstructure:"max_sessions"`
}

// legacyEnv binds the variable names the previous deployment used.
var legacyEnv = map[string]string{
	"http.port":       "PORT",
	"auth.jwt_secret": "JWT_SECRET",
	"database.dsn":    "DATABASE_URL",
	"redis.addr":      "REDIS_ADDR",
	"smtp.host":       "SMTP_HOST",
	"smtp.port":       "SMTP_PORT",
	"smtp.user":       "SMTP_USER",
	"smtp.pass":       "SMTP_PASS",
	"smtp.secure":     "SMTP_SECURE",
	"smtp.from":       "EMAIL_FROM",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("log_level", "info")

	v.SetDefault("http.host", "")
	v.SetDefault("http.port", 5000)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.trust_proxy", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.pass", "")
	v.SetDefault("smtp.secure", false)
	v.SetDefault("smtp.from", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)
	v.SetDefault("auth.validation_mode", "jwt_only")
	v.SetDefault("auth.app_name", "E-Learning App")
	v.SetDefault("auth.login_throttle", false)
	v.SetDefault("auth.ip_throttle", false)
	v.SetDefault("auth.audit", false)
	v.SetDefault("auth.send_welcome", true)
	v.SetDefault("auth.max_sessions", 10)
}

// LoadConfig reads defaults, the optional file named by EDUAUTH_CONFIG and
// the environment, in increasing priority.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("EDUAUTH_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("EDUAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "EDUAUTH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", legacy, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn (DATABASE_URL) is required")
	}
	if c.HTTP.Port < 0 {
		return errors.New("http.port must be >= 0")
	}
	if _, err := parseValidationMode(c.Auth.ValidationMode); err != nil {
		return err
	}
	if c.Auth.LoginThrottle && c.Redis.Addr == "" {
		return errors.New("auth.login_throttle requires redis.addr")
	}
	return nil
}

// EngineConfig translates the service settings onto the engine defaults.
func (c *Config) EngineConfig() (eduAuth.Config, error) {
	mode, err := parseValidationMode(c.Auth.ValidationMode)
	if err != nil {
		return eduAuth.Config{}, err
	}

	cfg := eduAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.Auth.JWTSecret)
	if c.Auth.TokenTTL > 0 {
		cfg.JWT.TokenTTL = c.Auth.TokenTTL
	}
	if c.Auth.MaxSessions > 0 {
		cfg.Session.MaxSessions = c.Auth.MaxSessions
	}
	cfg.ValidationMode = mode
	cfg.Mail.AppName = c.Auth.AppName
	cfg.Registration.SendWelcome = c.Auth.SendWelcome
	cfg.Security.EnableLoginThrottle = c.Auth.LoginThrottle
	cfg.Security.EnableIPThrottle = c.Auth.IPThrottle
	cfg.Audit.Enabled = c.Auth.Audit
	cfg.Metrics.EnableLatencyHistograms = c.Env == EnvProduction
	return cfg, cfg.Validate()
}

// MailConfig returns the SMTP settings in the form mail.NewSMTPSender takes.
func (c *Config) MailConfig() mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.User,
		Password: c.SMTP.Pass,
		Secure:   c.SMTP.Secure,
		From:     c.SMTP.From,
	}
}

func parseValidationMode(s string) (eduAuth.ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jwt_only":
		return eduAuth.ModeJWTOnly, nil
	case "strict":
		return eduAuth.ModeStrict, nil
	default:
		return 0, fmt.Errorf("auth.validation_mode %q must be jwt_only or strict", s)
	}
}
