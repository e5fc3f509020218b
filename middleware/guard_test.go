package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	token    string
	result   *eduAuth.AuthResult
	lastMode eduAuth.ValidationMode
}

func (s *stubValidator) Validate(_ context.Context, token string, mode eduAuth.ValidationMode) (*eduAuth.AuthResult, error) {
	s.lastMode = mode
	if token != s.token {
		return nil, eduAuth.ErrUnauthorized
	}
	return s.result, nil
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(res.UserID))
	})
}

func TestGuard(t *testing.T) {
	v := &stubValidator{
		token:  "good",
		result: &eduAuth.AuthResult{UserID: "u1", SessionID: "s1", Role: store.RoleStudent},
	}
	h := Guard(v, eduAuth.ModeInherit)(okHandler(t))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"good token", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, eduAuth.ModeInherit, v.lastMode)
}

func TestModeWrappers(t *testing.T) {
	v := &stubValidator{token: "good", result: &eduAuth.AuthResult{UserID: "u1"}}

	for mode, mw := range map[eduAuth.ValidationMode]func(http.Handler) http.Handler{
		eduAuth.ModeJWTOnly: RequireJWTOnly(v),
		eduAuth.ModeStrict:  RequireStrict(v),
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		mw(okHandler(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, mode, v.lastMode)
	}
}

func TestRequireRole(t *testing.T) {
	v := &stubValidator{token: "good", result: &eduAuth.AuthResult{UserID: "u1", Role: store.RoleStudent}}
	var captured error
	writer := WithErrorWriter(func(w http.ResponseWriter, _ *http.Request, err error) {
		captured = err
		w.WriteHeader(http.StatusTeapot)
	})

	h := Guard(v, eduAuth.ModeJWTOnly)(RequireRole([]store.Role{store.RoleTeacher}, writer)(okHandler(t)))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.True(t, errors.Is(captured, eduAuth.ErrRoleMismatch))

	v.result.Role = store.RoleTeacher
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestRequireRoleWithoutGuard(t *testing.T) {
	h := RequireRole([]store.Role{store.RoleTeacher})(okHandler(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
