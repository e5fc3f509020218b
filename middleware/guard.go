package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/store"
)

type authResultContextKey struct{}

// Validator is the part of eduAuth.Engine the guards need.
type Validator interface {
	Validate(ctx context.Context, token string, mode eduAuth.ValidationMode) (*eduAuth.AuthResult, error)
}

// ErrorWriter writes a rejection. err wraps eduAuth.ErrUnauthorized for a
// missing or invalid token and eduAuth.ErrRoleMismatch for a wrong role.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Option configures a guard.
type Option func(*options)

type options struct {
	writeError ErrorWriter
}

// WithErrorWriter replaces the default plain-text error response.
func WithErrorWriter(fn ErrorWriter) Option {
	return func(o *options) {
		if fn != nil {
			o.writeError = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{writeError: plainError}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func plainError(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, eduAuth.ErrRoleMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// AuthResultFromContext returns what the guard validated for this request.
func AuthResultFromContext(ctx context.Context) (*eduAuth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*eduAuth.AuthResult)
	return res, ok
}

// Guard rejects requests without a valid bearer token.
func Guard(v Validator, mode eduAuth.ValidationMode, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				o.writeError(w, r, eduAuth.ErrUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				o.writeError(w, r, eduAuth.ErrUnauthorized)
				return
			}

			res, err := v.Validate(r.Context(), token, mode)
			if err != nil {
				o.writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after a guard. It rejects callers whose token role
// is not one of roles.
func RequireRole(roles []store.Role, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				o.writeError(w, r, eduAuth.ErrUnauthorized)
				return
			}
			for _, role := range roles {
				if res.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			o.writeError(w, r, eduAuth.ErrRoleMismatch)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
