package eduAuth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/eduAuth/mail"
	"github.com/MrEthical07/eduAuth/store"
	"github.com/MrEthical07/eduAuth/store/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var (
	codePattern  = regexp.MustCompile(`verification code is: (\d{6})`)
	tokenPattern = regexp.MustCompile(`proceed:\n\n(\S+)\n`)

	testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	fail error
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMailer) last(t *testing.T, pattern *regexp.Regexp) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if match := pattern.FindStringSubmatch(m.sent[i].Text); match != nil {
			return match[1]
		}
	}
	t.Fatalf("no message matching %s among %d sent", pattern, len(m.sent))
	return ""
}

type testHarness struct {
	engine *Engine
	users  *memstore.Store
	mailer *captureMailer
	clock  *fakeClock
	redis  *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Registration.SendWelcome = false
	return cfg
}

func newTestHarness(t *testing.T, mutate ...func(*Config)) *testHarness {
	t.Helper()
	return buildHarness(t, false, mutate...)
}

// newRedisHarness backs challenges and the login throttle with miniredis.
func newRedisHarness(t *testing.T, mutate ...func(*Config)) *testHarness {
	t.Helper()
	return buildHarness(t, true, mutate...)
}

func buildHarness(t *testing.T, withRedis bool, mutate ...func(*Config)) *testHarness {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	h := &testHarness{
		users:  memstore.New(),
		mailer: &captureMailer{},
		clock:  newFakeClock(),
	}

	b := New().
		WithConfig(cfg).
		WithUserStore(h.users).
		WithMailer(h.mailer).
		WithClock(h.clock.Now)

	if withRedis {
		h.redis = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: h.redis.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		b = b.WithRedis(rdb)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *testHarness) register(t *testing.T, email string, role store.Role) *LoginResult {
	t.Helper()
	res, err := h.engine.Register(context.Background(), RegisterRequest{
		Name:     "Alice Example",
		Email:    email,
		Password: "correct-horse",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return res
}

// registerWithTwoFactor registers email and turns on emailed codes.
func (h *testHarness) registerWithTwoFactor(t *testing.T, email string) string {
	t.Helper()
	res := h.register(t, email, "")
	if _, err := h.engine.SetTwoFactor(context.Background(), res.UserID, true); err != nil {
		t.Fatalf("SetTwoFactor failed: %v", err)
	}
	return res.UserID
}

func (h *testHarness) login(t *testing.T, email string) *LoginResult {
	t.Helper()
	res, err := h.engine.Login(context.Background(), LoginRequest{Email: email, Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
