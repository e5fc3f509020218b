package middleware

import (
	"net/http"

	eduAuth "github.com/MrEthical07/eduAuth"
)

// RequireStrict also loads the user's session list and rejects tokens whose
// session is gone.
func RequireStrict(v Validator, opts ...Option) func(http.Handler) http.Handler {
	return Guard(v, eduAuth.ModeStrict, opts...)
}
