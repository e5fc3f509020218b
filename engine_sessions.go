package eduAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
)

// LogoutAll removes every session of userID except currentSessionID and
// returns how many were removed. Tokens of removed sessions stay valid
// under [ModeJWTOnly].
func (e *Engine) LogoutAll(ctx context.Context, userID, currentSessionID string) (int, error) {
	removed, err := e.sessions.RevokeAllExcept(ctx, userID, currentSessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, backendError("revoke sessions", err)
	}

	e.metricInc(MetricLogoutAll)
	e.metricAdd(MetricSessionRevoked, removed)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, currentSessionID, nil, func() map[string]string {
		return map[string]string{"removed": fmt.Sprint(removed)}
	})
	return removed, nil
}

// Sessions returns the stored session list of userID.
func (e *Engine) Sessions(ctx context.Context, userID string) ([]session.Descriptor, error) {
	list, err := e.sessions.List(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, backendError("list sessions", err)
	}
	return list, nil
}

// Validate checks a bearer token. [ModeInherit] uses the configured mode.
// Every failure wraps [ErrUnauthorized].
func (e *Engine) Validate(ctx context.Context, token string, mode ValidationMode) (*AuthResult, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	if mode == ModeInherit {
		mode = e.config.ValidationMode
	}

	claims, err := e.jwtManager.ParseToken(token)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if mode == ModeStrict {
		list, err := e.sessions.List(ctx, claims.UID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, backendError("list sessions", err)
		}
		if !session.Contains(list, claims.SID) {
			e.metricInc(MetricValidateFailure)
			return nil, fmt.Errorf("%w: session revoked", ErrUnauthorized)
		}
	}

	e.metricInc(MetricValidateSuccess)
	res := &AuthResult{
		UserID:    claims.UID,
		SessionID: claims.SID,
		Role:      store.Role(claims.Role),
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res, nil
}
