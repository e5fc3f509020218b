package eduAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/eduAuth/internal/rate"
	"github.com/MrEthical07/eduAuth/store"
	"go.uber.org/zap"
)

// Login checks the password of req.Email.
//
// Unknown emails and wrong passwords both fail with [ErrInvalidCredentials]
// after the same amount of hashing work. When the identity has two-factor
// enabled a code is mailed and the result only carries Requires2FA, the
// user id and the masked address; [Engine.VerifyTwoFactor] finishes the
// login. Otherwise a session is opened and its token returned.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := store.NormalizeEmail(req.Email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Reason: "is required"}
	}
	if req.Password == "" {
		return nil, &ValidationError{Field: "password", Reason: "is required"}
	}
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, nil)
				return nil, ErrLoginRateLimited
			}
			return nil, backendError("login throttle", err)
		}
	}

	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, backendError("load user", err)
		}
		_, _ = e.passwordHash.Verify(req.Password, e.dummyHash)
		return nil, e.loginFailed(ctx, email, ip, "")
	}

	ok, err := e.passwordHash.Verify(req.Password, u.PasswordHash)
	if err != nil {
		return nil, backendError("verify password", err)
	}
	if !ok {
		return nil, e.loginFailed(ctx, email, ip, u.ID)
	}

	if req.RequiredRole != "" && u.Role != req.RequiredRole {
		e.metricInc(MetricLoginRoleMismatch)
		e.emitAudit(ctx, auditEventLoginFailure, false, u.ID, "", ErrRoleMismatch, func() map[string]string {
			return map[string]string{"required_role": string(req.RequiredRole)}
		})
		return nil, ErrRoleMismatch
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, email); err != nil {
			e.logger.Warn("reset login throttle failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	e.upgradeHash(ctx, u, req.Password)

	if u.TwoFactorEnabled {
		if _, err := e.issueTwoFactorCode(ctx, u); err != nil {
			return nil, err
		}
		e.metricInc(MetricTwoFactorRequired)
		e.emitAudit(ctx, auditEventTwoFactorRequired, true, u.ID, "", nil, nil)
		return &LoginResult{
			Requires2FA: true,
			UserID:      u.ID,
			MaskedEmail: MaskEmail(u.Email),
		}, nil
	}

	res, err := e.startSession(ctx, u)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, u.ID, res.Session.ID, nil, nil)
	return res, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip, userID string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.Warn("count failed login", zap.Error(err))
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

// upgradeHash rehashes under the current cost parameters. Failure only
// leaves the old hash in place.
func (e *Engine) upgradeHash(ctx context.Context, u *store.User, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	stale, err := e.passwordHash.NeedsUpgrade(u.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := e.passwordHash.Hash(pw)
	if err != nil {
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		e.logger.Warn("password hash upgrade failed", zap.String("user_id", u.ID), zap.Error(err))
		return
	}
	u.PasswordHash = hash
}
