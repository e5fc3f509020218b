package eduAuth

import (
	"context"
	"testing"
)

func TestHealthMemoryBackend(t *testing.T) {
	h := newTestHarness(t)

	st := h.engine.Health(context.Background())
	if st.ChallengeBackend != "memory" || !st.Healthy() {
		t.Fatalf("unexpected health %+v", st)
	}
}

func TestHealthRedisBackend(t *testing.T) {
	h := newRedisHarness(t)

	st := h.engine.Health(context.Background())
	if st.ChallengeBackend != "redis" || !st.RedisAvailable || !st.Healthy() {
		t.Fatalf("unexpected health %+v", st)
	}

	h.redis.Close()
	st = h.engine.Health(context.Background())
	if st.RedisAvailable || st.Healthy() {
		t.Fatalf("expected unhealthy after redis shutdown, got %+v", st)
	}
}

func TestLoginAttemptsFollowsThrottle(t *testing.T) {
	ctx := context.Background()

	plain := newTestHarness(t)
	if n, err := plain.engine.LoginAttempts(ctx, "alice@example.com"); err != nil || n != 0 {
		t.Fatalf("expected 0 without throttle, got %d, %v", n, err)
	}

	h := newRedisHarness(t, func(c *Config) {
		c.Security.EnableLoginThrottle = true
	})
	h.register(t, "alice@example.com", "")

	for i := 0; i < 2; i++ {
		_, err := h.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong-horse"})
		wantErr(t, err, ErrInvalidCredentials)
	}

	n, err := h.engine.LoginAttempts(ctx, " Alice@Example.com ")
	if err != nil {
		t.Fatalf("LoginAttempts failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}

	h.login(t, "alice@example.com")
	if n, _ := h.engine.LoginAttempts(ctx, "alice@example.com"); n != 0 {
		t.Fatalf("expected counter reset after success, got %d", n)
	}
}

func TestSecurityReport(t *testing.T) {
	h := newRedisHarness(t, func(c *Config) {
		c.Security.EnableLoginThrottle = true
		c.ValidationMode = ModeStrict
	})

	r := h.engine.SecurityReport()
	if r.SigningAlgorithm != "hs256" || r.ValidationMode != ModeStrict {
		t.Fatalf("unexpected signing report %+v", r)
	}
	if !r.LoginThrottleActive || r.IPThrottleActive || !r.DistributedChallenge {
		t.Fatalf("unexpected throttle report %+v", r)
	}
	if !r.PasswordResetActive || r.AuditEnabled {
		t.Fatalf("unexpected feature report %+v", r)
	}
	if r.CodeMaxAttempts != 3 || r.Argon2.Memory != 8*1024 {
		t.Fatalf("unexpected policy report %+v", r)
	}

	var nilEngine *Engine
	if got := nilEngine.SecurityReport(); got != (SecurityReport{}) {
		t.Fatalf("expected zero report for nil engine")
	}
}
