package eduAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/eduAuth/store"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	ChallengeBackend string
	RedisAvailable   bool
	RedisLatency     time.Duration
}

// Healthy reports whether every configured backend answered.
func (h HealthStatus) Healthy() bool {
	return h.ChallengeBackend == "memory" || h.RedisAvailable
}

// Health pings Redis when pending codes are kept there.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e.redis == nil {
		return HealthStatus{ChallengeBackend: "memory"}
	}

	start := time.Now()
	err := e.redis.Ping(ctx).Err()
	return HealthStatus{
		ChallengeBackend: "redis",
		RedisAvailable:   err == nil,
		RedisLatency:     time.Since(start),
	}
}

// LoginAttempts returns the failed logins counted against email in the
// current throttle window. It is 0 when the throttle is off.
func (e *Engine) LoginAttempts(ctx context.Context, email string) (int, error) {
	if e.rateLimiter == nil {
		return 0, nil
	}
	email = store.NormalizeEmail(email)
	if email == "" {
		return 0, nil
	}

	n, err := e.rateLimiter.LoginAttempts(ctx, email)
	if err != nil {
		return 0, backendError("login attempts", err)
	}
	return n, nil
}
