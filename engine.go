package eduAuth

import (
	"context"
	"errors"
	"sync"
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

// Engine runs registration, login, two-factor verification, session and
// password flows. Build it with [Builder]; it is safe for concurrent use.
type Engine struct {
	config       Config
	users        store.Store
	sessions     *session.Registry
	challenges   challenge.Store
	twoFactor    *challenge.Registry
	resets       *challenge.Registry
	rateLimiter  *rate.Limiter
	redis        redis.UniversalClient
	passwordHash *password.Argon2
	dummyHash    string
	jwtManager   *jwt.Manager
	mailer       mail.Sender
	templates    mail.Templates
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *zap.Logger
	now          func() time.Time

	background sync.WaitGroup
}

// Close waits for in-flight welcome mails and flushes the audit buffer. The
// engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.background.Wait()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events a full buffer discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditStats returns the audit delivery counters. A sink panic counts as
// failed, not delivered.
func (e *Engine) AuditStats() AuditStats {
	if e == nil || e.audit == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// MetricsSnapshot copies the in-process counters and histograms. It returns
// empty maps when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e.metrics != nil {
		e.metrics.Inc(id)
	}
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if e.metrics != nil {
		e.metrics.Add(id, n)
	}
}

// send delivers msg within the configured timeout. The timeout detaches from
// ctx cancellation so a dropped client connection does not abort a send
// that already started.
func (e *Engine) send(ctx context.Context, msg mail.Message) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.Mail.SendTimeout)
	defer cancel()
	return e.mailer.Send(sendCtx, msg)
}

// startSession records a new session for u and signs a token for it.
func (e *Engine) startSession(ctx context.Context, u *store.User) (*LoginResult, error) {
	sid, err := session.NewID()
	if err != nil {
		return nil, backendError("session id", err)
	}

	now := e.now().UTC()
	d := session.Descriptor{
		ID:         sid,
		DeviceInfo: session.DescribeDevice(userAgentFromContext(ctx)),
		IPAddress:  clientIPFromContext(ctx),
		CreatedAt:  now,
		LastActive: now,
	}

	res, err := e.sessions.Add(ctx, u.ID, d, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, backendError("add session", err)
	}
	e.metricInc(MetricSessionCreated)
	e.metricAdd(MetricSessionPruned, res.Pruned)
	e.metricAdd(MetricSessionEvicted, res.Evicted)

	token, err := e.jwtManager.CreateToken(u.ID, sid, string(u.Role))
	if err != nil {
		return nil, backendError("sign token", err)
	}

	return &LoginResult{
		UserID:  u.ID,
		Token:   token,
		User:    identityOf(u),
		Session: res.Session,
	}, nil
}
