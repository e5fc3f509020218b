package httpapi

import (
	"net/http"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/middleware"
	"github.com/MrEthical07/eduAuth/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Handler serves the account API of one engine.
type Handler struct {
	engine     *eduAuth.Engine
	logger     *zap.Logger
	metrics    http.Handler
	trustProxy bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request and error logger. The default discards.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(metrics http.Handler) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithTrustProxy takes the client address from X-Forwarded-For or
// X-Real-IP. Only enable it behind a proxy that overwrites those headers;
// otherwise callers choose the address the login throttle counts against.
func WithTrustProxy(trust bool) Option {
	return func(h *Handler) {
		h.trustProxy = trust
	}
}

// New returns a Handler for engine.
func New(engine *eduAuth.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the chi router with every route mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)
	if h.trustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(clientContext)

	r.Get("/healthz", h.health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	guard := middleware.Guard(h.engine, eduAuth.ModeInherit, middleware.WithErrorWriter(h.writeError))
	teacherOnly := middleware.RequireRole([]store.Role{store.RoleTeacher}, middleware.WithErrorWriter(h.writeTeacherError))

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", h.registerUser)
		r.Post("/login", h.loginUser)
		r.Post("/verify-2fa", h.verifyTwoFactor)
		r.Post("/resend-2fa", h.resendTwoFactor)
		r.Get("/2fa-status/{userId}", h.twoFactorStatus)
		r.Post("/request-password-reset", h.requestPasswordReset)
		r.Post("/reset-password", h.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Get("/me", h.profile)
			r.Delete("/me", h.deleteAccount)
			r.Put("/change-password", h.changePassword)
			r.Put("/two-factor", h.setTwoFactor)
			r.Post("/logout-all", h.logoutAll)
		})
	})

	r.Route("/api/teachers", func(r chi.Router) {
		r.Post("/register", h.registerTeacher)
		r.Post("/login", h.loginTeacher)
		r.With(guard, teacherOnly).Get("/me", h.profile)
	})

	return r
}

// clientContext hands the caller's address and user agent to the engine.
func clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := eduAuth.WithClientIP(r.Context(), clientIP(r))
		ctx = eduAuth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Health(r.Context())
	body := map[string]interface{}{
		"status":           "ok",
		"challengeBackend": st.ChallengeBackend,
	}
	status := http.StatusOK
	if !st.Healthy() {
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}
