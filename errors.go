package eduAuth

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail is returned when registration hits an existing account.
	ErrDuplicateEmail = errors.New("user already exists with this email")
	// ErrRoleNotAllowed is returned when self-registration asks for a role it cannot have.
	ErrRoleNotAllowed = errors.New("role not allowed for registration")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrRoleMismatch is returned when a role-restricted login finds another role.
	ErrRoleMismatch = errors.New("role mismatch")
	// ErrLoginRateLimited is returned while the failed-login throttle blocks an email or IP.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrUserNotFound is returned when an operation names an identity that does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized is returned for missing, invalid or revoked tokens.
	ErrUnauthorized = errors.New("unauthorized")

	ErrNoPendingCode     = errors.New("no pending verification code")
	ErrCodeExpired       = errors.New("verification code expired")
	ErrAttemptsExhausted = errors.New("verification attempts exhausted")
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrResendTooSoon     = errors.New("verification code requested too soon")
	ErrDeliveryFailed    = errors.New("verification code delivery failed")
	ErrTwoFactorDisabled = errors.New("two-factor authentication is not enabled")

	// ErrPasswordMismatch is returned by ChangePassword when the current password is wrong.
	ErrPasswordMismatch = errors.New("current password is incorrect")
	// ErrResetTokenInvalid covers unknown, expired, exhausted and malformed reset tokens.
	ErrResetTokenInvalid = errors.New("password reset token invalid or expired")
	// ErrResetDisabled is returned by the reset flow when PasswordReset.Enabled is off.
	ErrResetDisabled = errors.New("password reset disabled")

	// ErrBackend wraps unexpected store, cache or signing failures.
	ErrBackend = errors.New("auth backend failure")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidCodeError is returned for a wrong verification code.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrInvalidCode.Error(), e.Remaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

// ResendTooSoonError carries how long the caller must wait.
type ResendTooSoonError struct {
	Wait time.Duration
}

func (e *ResendTooSoonError) Error() string {
	return fmt.Sprintf("%s: wait %d seconds", ErrResendTooSoon.Error(), e.WaitSeconds())
}

func (e *ResendTooSoonError) Unwrap() error { return ErrResendTooSoon }

// WaitSeconds rounds Wait up to whole seconds.
func (e *ResendTooSoonError) WaitSeconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

func backendError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBackend, op, err)
}
