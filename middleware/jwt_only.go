package middleware

import (
	"net/http"

	eduAuth "github.com/MrEthical07/eduAuth"
)

// RequireJWTOnly accepts any correctly signed, unexpired token, including
// tokens of sessions removed by logout-all.
func RequireJWTOnly(v Validator, opts ...Option) func(http.Handler) http.Handler {
	return Guard(v, eduAuth.ModeJWTOnly, opts...)
}
