package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/httpapi"
	"github.com/MrEthical07/eduAuth/mail"
	"github.com/MrEthical07/eduAuth/metrics/export/prometheus"
	"github.com/MrEthical07/eduAuth/store"
	"github.com/MrEthical07/eduAuth/store/gormstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the user database and applies migrations when
// configured to.
func NewDatabase(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.LogLevel == "debug" {
		level = logger.Info
	}

	db, err := gormstore.Open(cfg.Database.Driver, cfg.Database.DSN, level)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := gormstore.Migrate(db, cfg.Database.Driver); err != nil {
			return nil, err
		}
		version, _ := gormstore.Version(db)
		log.Info("database migrated", zap.Int64("version", version))
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing database connections")
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func NewUserStore(db *gorm.DB) store.Store {
	return gormstore.New(db)
}

// NewRedis returns nil when no address is configured.
func NewRedis(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (redis.UniversalClient, error) {
	if cfg.Redis.Addr == "" {
		log.Info("redis not configured, pending codes kept in memory")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// NewMailer sends through SMTP when it is configured and logs otherwise.
func NewMailer(cfg *Config, log *zap.Logger) (mail.Sender, error) {
	smtp := cfg.MailConfig()
	if !smtp.Configured() {
		log.Warn("smtp not configured, outgoing mail will only be logged")
		return mail.NewLogSender(log), nil
	}
	return mail.NewSMTPSender(smtp)
}

type EngineParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *Config
	Logger    *zap.Logger
	Users     store.Store
	Mailer    mail.Sender
	Redis     redis.UniversalClient `optional:"true"`
}

// NewEngine builds the engine and runs its challenge sweeper for the
// lifetime of the application.
func NewEngine(p EngineParams) (*eduAuth.Engine, error) {
	cfg, err := p.Config.EngineConfig()
	if err != nil {
		return nil, err
	}

	b := eduAuth.New().
		WithConfig(cfg).
		WithUserStore(p.Users).
		WithMailer(p.Mailer).
		WithLogger(p.Logger)
	if p.Redis != nil {
		b = b.WithRedis(p.Redis)
	}
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(eduAuth.NewZapAuditSink(p.Logger.Named("audit")))
	}

	engine, err := b.Build()
	if err != nil {
		return nil, err
	}
	logSecurityReport(p.Logger, engine.SecurityReport())

	sweepCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				engine.RunSweeper(sweepCtx)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			engine.Close()
			return nil
		},
	})
	return engine, nil
}

func logSecurityReport(log *zap.Logger, r eduAuth.SecurityReport) {
	log.Info("auth engine ready",
		zap.String("signing_algorithm", r.SigningAlgorithm),
		zap.Stringer("validation_mode", r.ValidationMode),
		zap.Duration("token_ttl", r.TokenTTL),
		zap.Uint32("argon2_memory_kb", r.Argon2.Memory),
		zap.Uint32("argon2_time", r.Argon2.Time),
		zap.Int("max_sessions", r.MaxSessions),
		zap.Duration("code_ttl", r.CodeTTL),
		zap.Int("code_max_attempts", r.CodeMaxAttempts),
		zap.Bool("login_throttle", r.LoginThrottleActive),
		zap.Bool("password_reset", r.PasswordResetActive),
		zap.Bool("audit", r.AuditEnabled),
		zap.Bool("distributed_challenges", r.DistributedChallenge),
	)
}

// HTTPServer owns the listener of the account API.
type HTTPServer struct {
	server          *http.Server
	log             *zap.Logger
	shutdownTimeout time.Duration

	mu   sync.Mutex
	addr net.Addr
}

func NewHTTPServer(cfg *Config, engine *eduAuth.Engine, log *zap.Logger) *HTTPServer {
	handler := httpapi.New(engine,
		httpapi.WithLogger(log.Named("http")),
		httpapi.WithMetricsHandler(prometheus.NewPrometheusExporter(engine).Handler()),
		httpapi.WithTrustProxy(cfg.HTTP.TrustProxy),
	)

	return &HTTPServer{
		server: &http.Server{
			Addr:         cfg.HTTP.Addr(),
			Handler:      handler.Router(),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
		log:             log,
		shutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}
}

// Start listens synchronously so bind errors fail startup, then serves in
// the background.
func (s *HTTPServer) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.addr = lis.Addr()
	s.mu.Unlock()

	s.log.Info("starting http server", zap.String("address", lis.Addr().String()))
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address, or nil before Start.
func (s *HTTPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.log.Info("shutting down http server")
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}
