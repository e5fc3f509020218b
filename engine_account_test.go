package eduAuth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
	"github.com/MrEthical07/eduAuth/store/memstore"
)

func TestRegisterReturnsTokenAndSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.9"),
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")

	res, err := h.engine.Register(ctx, RegisterRequest{
		Name:     "  Alice Example ",
		Email:    " Alice@Example.com ",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.Token == "" || res.Requires2FA {
		t.Fatalf("expected token without 2FA, got %+v", res)
	}
	if res.User.Email != "alice@example.com" || res.User.Name != "Alice Example" {
		t.Fatalf("identity not normalized: %+v", res.User)
	}
	if res.User.Role != store.RoleStudent {
		t.Fatalf("expected default role student, got %q", res.User.Role)
	}
	if res.Session.IPAddress != "203.0.113.9" || res.Session.DeviceInfo != "Windows PC • Chrome" {
		t.Fatalf("unexpected session descriptor: %+v", res.Session)
	}

	auth, err := h.engine.Validate(context.Background(), res.Token, ModeStrict)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if auth.UserID != res.UserID || auth.SessionID != res.Session.ID || auth.Role != store.RoleStudent {
		t.Fatalf("token claims mismatch: %+v", auth)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newTestHarness(t)
	req := RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct-horse"}

	if _, err := h.engine.Register(context.Background(), req); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := h.engine.Register(context.Background(), req)
	wantErr(t, err, ErrDuplicateEmail)

	req.Email = "ALICE@example.com "
	_, err = h.engine.Register(context.Background(), req)
	wantErr(t, err, ErrDuplicateEmail)

	if got := h.engine.MetricsSnapshot().Counters[MetricRegisterDuplicate]; got != 2 {
		t.Fatalf("expected 2 duplicate registrations counted, got %d", got)
	}
}

func TestRegisterConcurrentSameEmailOneWins(t *testing.T) {
	h := newTestHarness(t)

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Register(context.Background(), RegisterRequest{
				Name: "Alice", Email: "alice@example.com", Password: "correct-horse",
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrDuplicateEmail):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || dup.Load() != 7 {
		t.Fatalf("expected 1 success and 7 duplicates, got %d and %d", ok.Load(), dup.Load())
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newTestHarness(t)

	cases := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"missing name", RegisterRequest{Email: "a@example.com", Password: "secret1"}, "name"},
		{"short name", RegisterRequest{Name: "A", Email: "a@example.com", Password: "secret1"}, "name"},
		{"bad email", RegisterRequest{Name: "Al", Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", RegisterRequest{Name: "Al", Email: "a@example.com", Password: "12345"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.Register(context.Background(), tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
			wantErr(t, err, ErrValidation)
		})
	}
	if h.users.Len() != 0 {
		t.Fatalf("invalid registrations must not create users")
	}
}

func TestRegisterRoleNotAllowed(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.engine.Register(context.Background(), RegisterRequest{
		Name: "Mallory", Email: "m@example.com", Password: "correct-horse", Role: store.RoleAdmin,
	})
	wantErr(t, err, ErrRoleNotAllowed)

	res := h.register(t, "teacher@example.com", store.RoleTeacher)
	if res.User.Role != store.RoleTeacher {
		t.Fatalf("expected teacher role, got %q", res.User.Role)
	}
}

func TestRegisterSendsWelcomeInBackground(t *testing.T) {
	h := newTestHarness(t, func(c *Config) { c.Registration.SendWelcome = true })

	h.register(t, "alice@example.com", "")
	h.engine.Close()

	if h.mailer.count() != 1 {
		t.Fatalf("expected one welcome mail, got %d", h.mailer.count())
	}
}

func TestRegisterSucceedsWhenWelcomeMailFails(t *testing.T) {
	h := newTestHarness(t, func(c *Config) { c.Registration.SendWelcome = true })
	h.mailer.setFail(errors.New("smtp down"))

	res := h.register(t, "alice@example.com", "")
	if res.Token == "" {
		t.Fatalf("expected token despite mail failure")
	}
}

func TestProfileListsSessions(t *testing.T) {
	h := newTestHarness(t)
	reg := h.register(t, "alice@example.com", "")
	h.clock.Advance(time.Minute)
	h.login(t, "alice@example.com")

	p, err := h.engine.Profile(context.Background(), reg.UserID)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if p.Email != "alice@example.com" || len(p.ActiveSessions) != 2 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.ActiveSessions[0].ID != reg.Session.ID {
		t.Fatalf("expected registration session first")
	}

	_, err = h.engine.Profile(context.Background(), "missing")
	wantErr(t, err, ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	h := newTestHarness(t)
	reg := h.register(t, "alice@example.com", "")
	ctx := context.Background()

	err := h.engine.ChangePassword(ctx, reg.UserID, "wrong-password", "new-secret")
	wantErr(t, err, ErrPasswordMismatch)

	err = h.engine.ChangePassword(ctx, reg.UserID, "correct-horse", "123")
	wantErr(t, err, ErrValidation)

	if err := h.engine.ChangePassword(ctx, reg.UserID, "correct-horse", "new-secret"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	_, err = h.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct-horse"})
	wantErr(t, err, ErrInvalidCredentials)
	if _, err := h.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "new-secret"}); err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}

	if _, err := h.engine.Validate(ctx, reg.Token, ModeStrict); err != nil {
		t.Fatalf("existing session should survive password change: %v", err)
	}
}

func TestDeleteAccountDiscardsPendingCode(t *testing.T) {
	h := newTestHarness(t)
	uid := h.registerWithTwoFactor(t, "alice@example.com")
	h.login(t, "alice@example.com")

	if err := h.engine.DeleteAccount(context.Background(), uid); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	status, err := h.engine.TwoFactorStatus(context.Background(), uid)
	if err != nil {
		t.Fatalf("TwoFactorStatus failed: %v", err)
	}
	if status.HasPendingCode {
		t.Fatalf("pending code should be discarded with the account")
	}
	_, err = h.engine.Profile(context.Background(), uid)
	wantErr(t, err, ErrUserNotFound)

	err = h.engine.DeleteAccount(context.Background(), uid)
	wantErr(t, err, ErrUserNotFound)
}

func TestSetTwoFactorDisableDiscardsPendingCode(t *testing.T) {
	h := newTestHarness(t)
	uid := h.registerWithTwoFactor(t, "alice@example.com")
	h.login(t, "alice@example.com")

	enabled, err := h.engine.SetTwoFactor(context.Background(), uid, false)
	if err != nil || enabled {
		t.Fatalf("SetTwoFactor(false) = %v, %v", enabled, err)
	}

	status, err := h.engine.TwoFactorStatus(context.Background(), uid)
	if err != nil {
		t.Fatalf("TwoFactorStatus failed: %v", err)
	}
	if status.HasPendingCode {
		t.Fatalf("disabling two-factor should discard the pending code")
	}

	res := h.login(t, "alice@example.com")
	if res.Requires2FA || res.Token == "" {
		t.Fatalf("expected direct login after disabling 2FA, got %+v", res)
	}
}

// sessionWriteFailStore rejects session writes while fail is set.
type sessionWriteFailStore struct {
	*memstore.Store
	fail atomic.Bool
}

func (s *sessionWriteFailStore) SaveSessions(ctx context.Context, userID string, expected uint64, list []session.Descriptor) error {
	if s.fail.Load() {
		return errors.New("session table unavailable")
	}
	return s.Store.SaveSessions(ctx, userID, expected, list)
}

func TestRegisterRollsBackUserWhenSessionFails(t *testing.T) {
	st := &sessionWriteFailStore{Store: memstore.New()}
	st.fail.Store(true)

	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(st).
		WithMailer(&captureMailer{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	req := RegisterRequest{Name: "Alice Example", Email: "alice@example.com", Password: "s3cret-pass"}

	_, err = engine.Register(ctx, req)
	wantErr(t, err, ErrBackend)

	if _, err := st.GetUserByEmail(ctx, "alice@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected user to be removed, got %v", err)
	}

	st.fail.Store(false)
	res, err := engine.Register(ctx, req)
	if err != nil {
		t.Fatalf("Register retry failed: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected token on retry")
	}
}
