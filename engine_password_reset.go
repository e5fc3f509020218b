package eduAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/challenge"
	"github.com/MrEthical07/eduAuth/store"
	"go.uber.org/zap"
)

// RequestPasswordReset mails a reset token when email belongs to an
// account. Unknown addresses, throttled requests and failed deliveries all
// return nil so the response does not reveal which accounts exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	email = store.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if e.resets == nil {
		return ErrResetDisabled
	}
	e.metricInc(MetricPasswordResetRequest)

	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrUserNotFound, nil)
			return nil
		}
		return backendError("load user", err)
	}

	secret, err := internal.NewResetSecret()
	if err != nil {
		return backendError("generate reset secret", err)
	}
	token, err := internal.EncodeResetToken(u.ID, secret)
	if err != nil {
		return backendError("encode reset token", err)
	}

	rec, err := e.resets.Issue(ctx, u.ID, u.Email, internal.ResetSecretString(secret), e.now())
	if err != nil {
		if errors.Is(err, challenge.ErrTooSoon) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, u.ID, "", ErrResendTooSoon, nil)
			return nil
		}
		return backendError("issue reset token", err)
	}

	msg := e.templates.PasswordReset(u.Email, u.Name, token, e.config.PasswordReset.TokenTTL)
	if err := e.send(ctx, msg); err != nil {
		if _, derr := e.resets.Discard(context.WithoutCancel(ctx), rec); derr != nil {
			e.logger.Error("rollback of undelivered reset token failed",
				zap.String("user_id", u.ID),
				zap.Error(derr),
			)
		}
		e.logger.Warn("password reset mail failed", zap.String("user_id", u.ID), zap.Error(err))
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, u.ID, "", ErrDeliveryFailed, nil)
		return nil
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, u.ID, "", nil, nil)
	return nil
}

// ConfirmPasswordReset sets a new password using a mailed token and closes
// every session of the account. The token is single use. Wrong tokens count
// against its attempt budget.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return &ValidationError{Field: "token", Reason: "is required"}
	}
	if err := e.validatePassword("newPassword", newPassword); err != nil {
		return err
	}
	if e.resets == nil {
		return ErrResetDisabled
	}

	userID, secret, err := internal.DecodeResetToken(token)
	if err != nil {
		return e.resetFailed(ctx, "", ErrResetTokenInvalid)
	}

	if _, err := e.resets.Verify(ctx, userID, secret, e.now()); err != nil {
		if errors.Is(err, challenge.ErrBackend) {
			return backendError("verify reset token", err)
		}
		return e.resetFailed(ctx, userID, ErrResetTokenInvalid)
	}

	u, err := e.loadUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return e.resetFailed(ctx, userID, ErrResetTokenInvalid)
		}
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return backendError("hash password", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return backendError("update password", err)
	}

	removed, err := e.sessions.Clear(ctx, u.ID)
	if err != nil {
		return backendError("clear sessions", err)
	}
	e.metricAdd(MetricSessionRevoked, removed)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, u.Email); err != nil {
			e.logger.Warn("reset login throttle failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, u.ID, "", nil, nil)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricPasswordResetConfirmFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, "", err, nil)
	return err
}
