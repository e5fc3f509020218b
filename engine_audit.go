package eduAuth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterFailure       = "register_failure"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventTwoFactorRequired     = "two_factor_required"
	auditEventTwoFactorSuccess      = "two_factor_success"
	auditEventTwoFactorFailure      = "two_factor_failure"
	auditEventTwoFactorResend       = "two_factor_resend"
	auditEventTwoFactorToggled      = "two_factor_toggled"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventLogoutAll             = "logout_all"
	auditEventAccountDeleted        = "account_deleted"
)

// AuditErrorCode is the stable failure reason recorded on audit events.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrRoleNotAllowed     AuditErrorCode = "role_not_allowed"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRoleMismatch       AuditErrorCode = "role_mismatch"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrNoPendingCode      AuditErrorCode = "no_pending_code"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrAttemptsExhausted  AuditErrorCode = "attempts_exhausted"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrResendTooSoon      AuditErrorCode = "resend_too_soon"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrTwoFactorDisabled  AuditErrorCode = "two_factor_disabled"
	auditErrPasswordMismatch   AuditErrorCode = "password_mismatch"
	auditErrResetTokenInvalid  AuditErrorCode = "reset_token_invalid"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrRoleNotAllowed):
		return auditErrRoleNotAllowed
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRoleMismatch):
		return auditErrRoleMismatch
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrNoPendingCode):
		return auditErrNoPendingCode
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrAttemptsExhausted):
		return auditErrAttemptsExhausted
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrResendTooSoon):
		return auditErrResendTooSoon
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrTwoFactorDisabled):
		return auditErrTwoFactorDisabled
	case errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, ErrResetTokenInvalid):
		return auditErrResetTokenInvalid
	case errors.Is(err, ErrBackend):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func durationMeta(d time.Duration) string {
	return d.Round(time.Second).String()
}
