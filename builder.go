package eduAuth

import (
	"errors"
	"time"

	"github.com/MrEthical07/eduAuth/internal/audit"
	"github.com/MrEthical07/eduAuth/internal/challenge"
	"github.com/MrEthical07/eduAuth/internal/rate"
	"github.com/MrEthical07/eduAuth/jwt"
	"github.com/MrEthical07/eduAuth/mail"
	"github.com/MrEthical07/eduAuth/password"
	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. It is single use: configure it during
// initialization, call Build once and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     store.Store
	mailer    mail.Sender
	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets where identities and session lists are persisted. It
// is required.
func (b *Builder) WithUserStore(s store.Store) *Builder {
	b.users = s
	return b
}

// WithRedis moves pending codes and reset tokens to Redis and makes the
// login throttle available.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMailer sets the outgoing mail transport. Without one, messages are
// only logged.
func (b *Builder) WithMailer(sender mail.Sender) *Builder {
	b.mailer = sender
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination. Events are only produced when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for expiry, throttle and token timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if cfg.Security.EnableLoginThrottle && b.redis == nil {
		return nil, errors.New("login throttle requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config: cfg,
		users:  b.users,
		logger: logger,
		now:    now,
	}

	// -------- SESSIONS --------
	engine.sessions = session.NewRegistry(b.users, session.Limits{
		MaxSessions: cfg.Session.MaxSessions,
		MaxAge:      cfg.Session.MaxAge,
	})

	// -------- CHALLENGES --------
	if b.redis != nil {
		engine.redis = b.redis
		retention := cfg.Challenge.Retention
		if retention == 0 {
			retention = cfg.TwoFactor.SweepInterval
		}
		engine.challenges = challenge.NewRedisStore(b.redis, cfg.Challenge.RedisPrefix, retention)
	} else {
		engine.challenges = challenge.NewMemoryStore()
	}
	engine.twoFactor = challenge.NewRegistry(engine.challenges, cfg.TwoFactor.Namespace, challenge.Policy{
		TTL:         cfg.TwoFactor.CodeTTL,
		MaxAttempts: cfg.TwoFactor.MaxAttempts,
		ResendAfter: cfg.TwoFactor.ResendInterval,
	})
	if cfg.PasswordReset.Enabled {
		engine.resets = challenge.NewRegistry(engine.challenges, cfg.PasswordReset.Namespace, challenge.Policy{
			TTL:         cfg.PasswordReset.TokenTTL,
			MaxAttempts: cfg.PasswordReset.MaxAttempts,
			ResendAfter: cfg.PasswordReset.ResendInterval,
		})
	}

	if cfg.Security.EnableLoginThrottle {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			LoginWindow:      cfg.Security.LoginWindow,
		})
	}

	// -------- MAIL --------
	engine.mailer = b.mailer
	if engine.mailer == nil {
		engine.mailer = mail.NewLogSender(logger)
	}
	engine.templates = mail.Templates{AppName: cfg.Mail.AppName}

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinLength:        cfg.Password.MinLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	// Unknown emails are verified against this so they cost the same as a
	// wrong password.
	dummy, err := ph.Hash("eduauth-timing-equalizer")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		TokenTTL:      cfg.JWT.TokenTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    true,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
		Logger:      logger,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
