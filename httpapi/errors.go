package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	eduAuth "github.com/MrEthical07/eduAuth"
	"go.uber.org/zap"
)

// Reasons reported in the "code" field of error bodies.
const (
	ReasonValidationFailed   = "ValidationFailed"
	ReasonDuplicateEmail     = "DuplicateEmail"
	ReasonInvalidCredentials = "InvalidCredentials"
	ReasonRoleMismatch       = "RoleMismatch"
	ReasonNoPendingCode      = "NoPendingCode"
	ReasonCodeExpired        = "CodeExpired"
	ReasonAttemptsExhausted  = "AttemptsExhausted"
	ReasonInvalidCode        = "InvalidCode"
	ReasonResendTooSoon      = "ResendTooSoon"
	ReasonDeliveryFailed     = "DeliveryFailed"
	ReasonRateLimited        = "RateLimited"
	ReasonUnauthorized       = "Unauthorized"
	ReasonNotFound           = "NotFound"
	ReasonInternalError      = "InternalError"
)

var (
	errEmptyBody     = errors.New("request body is empty")
	errMalformedBody = errors.New("request body is not valid JSON")
)

type errorMapping struct {
	target  error
	status  int
	reason  string
	message string
}

// Order matters: the first match wins. Empty messages use err.Error().
var errorMappings = []errorMapping{
	{eduAuth.ErrValidation, http.StatusBadRequest, ReasonValidationFailed, ""},
	{eduAuth.ErrDuplicateEmail, http.StatusBadRequest, ReasonDuplicateEmail, "User already exists with this email"},
	{eduAuth.ErrRoleNotAllowed, http.StatusBadRequest, ReasonValidationFailed, "Role not allowed"},
	{eduAuth.ErrInvalidCredentials, http.StatusUnauthorized, ReasonInvalidCredentials, "Invalid email or password"},
	{eduAuth.ErrRoleMismatch, http.StatusForbidden, ReasonRoleMismatch, "Access denied"},
	{eduAuth.ErrLoginRateLimited, http.StatusTooManyRequests, ReasonRateLimited, "Too many failed login attempts. Try again later."},
	{eduAuth.ErrUserNotFound, http.StatusNotFound, ReasonNotFound, "User not found"},
	{eduAuth.ErrUnauthorized, http.StatusUnauthorized, ReasonUnauthorized, "Not authorized"},
	{eduAuth.ErrNoPendingCode, http.StatusBadRequest, ReasonNoPendingCode, "No verification code found. Please request a new code."},
	{eduAuth.ErrCodeExpired, http.StatusBadRequest, ReasonCodeExpired, "Verification code has expired. Please request a new code."},
	{eduAuth.ErrAttemptsExhausted, http.StatusBadRequest, ReasonAttemptsExhausted, "Too many failed attempts. Please request a new code."},
	{eduAuth.ErrInvalidCode, http.StatusBadRequest, ReasonInvalidCode, ""},
	{eduAuth.ErrResendTooSoon, http.StatusTooManyRequests, ReasonResendTooSoon, ""},
	{eduAuth.ErrDeliveryFailed, http.StatusInternalServerError, ReasonDeliveryFailed, "Failed to send verification code"},
	{eduAuth.ErrTwoFactorDisabled, http.StatusBadRequest, ReasonValidationFailed, "Two-factor authentication is not enabled"},
	{eduAuth.ErrPasswordMismatch, http.StatusBadRequest, ReasonValidationFailed, "Current password is incorrect"},
	{eduAuth.ErrResetTokenInvalid, http.StatusBadRequest, ReasonValidationFailed, "Invalid or expired reset token"},
	{eduAuth.ErrResetDisabled, http.StatusNotFound, ReasonNotFound, "Password reset is not available"},
	{errEmptyBody, http.StatusBadRequest, ReasonValidationFailed, ""},
	{errMalformedBody, http.StatusBadRequest, ReasonValidationFailed, ""},
}

// StatusFor returns the HTTP status and reason err is reported with.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.reason
		}
	}
	return http.StatusInternalServerError, ReasonInternalError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Code: ReasonInternalError, Message: "Internal server error"}
	status := http.StatusInternalServerError

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		status = m.status
		body.Code = m.reason
		body.Message = m.message
		if body.Message == "" {
			body.Message = err.Error()
		}
		break
	}

	var invalid *eduAuth.InvalidCodeError
	if errors.As(err, &invalid) {
		remaining := invalid.Remaining
		body.RemainingAttempts = &remaining
		body.Message = fmt.Sprintf("Invalid verification code. %d attempts remaining.", remaining)
	}
	var tooSoon *eduAuth.ResendTooSoonError
	if errors.As(err, &tooSoon) {
		wait := tooSoon.WaitSeconds()
		body.WaitTime = &wait
		body.Message = fmt.Sprintf("Please wait %d seconds before requesting a new code.", wait)
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}
