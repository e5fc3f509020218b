package eduAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/challenge"
	"github.com/MrEthical07/eduAuth/store"
	"go.uber.org/zap"
)

// issueTwoFactorCode replaces the pending code of u and mails the new one.
// When the mail cannot be delivered the new code is discarded again, so the
// user is left without a pending code rather than with one they never got.
func (e *Engine) issueTwoFactorCode(ctx context.Context, u *store.User) (challenge.Record, error) {
	code, err := internal.NewCode()
	if err != nil {
		return challenge.Record{}, backendError("generate code", err)
	}

	rec, err := e.twoFactor.Issue(ctx, u.ID, u.Email, code, e.now())
	if err != nil {
		var tooSoon *challenge.TooSoonError
		if errors.As(err, &tooSoon) {
			e.metricInc(MetricTwoFactorResendThrottled)
			return challenge.Record{}, &ResendTooSoonError{Wait: tooSoon.Wait}
		}
		return challenge.Record{}, backendError("issue code", err)
	}

	msg := e.templates.TwoFactorCode(u.Email, u.Name, code, e.config.TwoFactor.CodeTTL)
	if err := e.send(ctx, msg); err != nil {
		e.metricInc(MetricTwoFactorDeliveryFailed)
		if _, derr := e.twoFactor.Discard(context.WithoutCancel(ctx), rec); derr != nil {
			e.logger.Error("rollback of undelivered code failed",
				zap.String("user_id", u.ID),
				zap.Error(derr),
			)
		}
		e.logger.Warn("verification mail failed", zap.String("user_id", u.ID), zap.Error(err))
		return challenge.Record{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	e.metricInc(MetricTwoFactorCodeIssued)
	return rec, nil
}

// VerifyTwoFactor completes a login that returned Requires2FA. A correct
// code is consumed and opens a session. Each wrong code uses one attempt;
// once none are left the pending code is removed.
func (e *Engine) VerifyTwoFactor(ctx context.Context, userID, code string) (*LoginResult, error) {
	code = strings.TrimSpace(code)
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "is required"}
	}
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "is required"}
	}

	rec, err := e.twoFactor.Verify(ctx, userID, code, e.now())
	if err != nil {
		verr := e.twoFactorFailure(rec, err)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, "", verr, nil)
		return nil, verr
	}

	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res, err := e.startSession(ctx, u)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTwoFactorSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventTwoFactorSuccess, true, u.ID, res.Session.ID, nil, nil)
	return res, nil
}

func (e *Engine) twoFactorFailure(rec challenge.Record, err error) error {
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		e.metricInc(MetricTwoFactorFailure)
		return ErrNoPendingCode
	case errors.Is(err, challenge.ErrExpired):
		e.metricInc(MetricTwoFactorExpired)
		return ErrCodeExpired
	case errors.Is(err, challenge.ErrExhausted):
		e.metricInc(MetricTwoFactorExhausted)
		return ErrAttemptsExhausted
	case errors.Is(err, challenge.ErrMismatch):
		e.metricInc(MetricTwoFactorFailure)
		return &InvalidCodeError{Remaining: rec.Remaining()}
	default:
		return backendError("verify code", err)
	}
}

// ResendTwoFactor mails a fresh code, replacing the pending one. It fails
// with *[ResendTooSoonError] while the pending code is younger than the
// resend interval.
func (e *Engine) ResendTwoFactor(ctx context.Context, userID string) error {
	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.TwoFactorEnabled {
		return ErrTwoFactorDisabled
	}

	if _, err := e.issueTwoFactorCode(ctx, u); err != nil {
		e.emitAudit(ctx, auditEventTwoFactorResend, false, u.ID, "", err, func() map[string]string {
			var tooSoon *ResendTooSoonError
			if errors.As(err, &tooSoon) {
				return map[string]string{"wait": durationMeta(tooSoon.Wait)}
			}
			return nil
		})
		return err
	}

	e.emitAudit(ctx, auditEventTwoFactorResend, true, u.ID, "", nil, nil)
	return nil
}

// TwoFactorStatus describes the pending code of userID. A missing or
// expired code reports only HasPendingCode false.
func (e *Engine) TwoFactorStatus(ctx context.Context, userID string) (TwoFactorStatus, error) {
	now := e.now()
	rec, ok, err := e.twoFactor.Status(ctx, userID, now)
	if err != nil {
		return TwoFactorStatus{}, backendError("code status", err)
	}
	if !ok {
		return TwoFactorStatus{}, nil
	}

	return TwoFactorStatus{
		HasPendingCode: true,
		TimeRemaining:  rec.ExpiresAt.Sub(now),
		AttemptsUsed:   int(rec.Attempts),
		MaxAttempts:    int(rec.MaxAttempts),
		MaskedEmail:    MaskEmail(rec.Destination),
	}, nil
}
