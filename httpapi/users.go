package httpapi

import (
	"net/http"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/middleware"
	"github.com/MrEthical07/eduAuth/session"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Register(r.Context(), eduAuth.RegisterRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Role:     body.Role,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, identityOf(res.User, res.Token))
}

func (h *Handler) loginUser(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Login(r.Context(), eduAuth.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (h *Handler) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body verifyBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.UserID == "" || body.Code == "" {
		h.writeError(w, r, &eduAuth.ValidationError{Reason: "User ID and verification code are required"})
		return
	}

	res, err := h.engine.VerifyTwoFactor(r.Context(), body.UserID, body.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityOf(res.User, res.Token))
}

func (h *Handler) resendTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body resendBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.UserID == "" {
		h.writeError(w, r, &eduAuth.ValidationError{Field: "userId", Reason: "is required"})
		return
	}

	if err := h.engine.ResendTwoFactor(r.Context(), body.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "New verification code sent to your email")
}

func (h *Handler) twoFactorStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.TwoFactorStatus(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody(st))
}

func (h *Handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body resetRequestBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Email == "" {
		h.writeError(w, r, &eduAuth.ValidationError{Reason: "Please provide an email address"})
		return
	}

	if err := h.engine.RequestPasswordReset(r.Context(), body.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "If an account with that email exists, a password reset link has been sent.")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetConfirmBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.engine.ConfirmPasswordReset(r.Context(), body.Token, body.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset. Please log in again.")
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		h.writeError(w, r, eduAuth.ErrUnauthorized)
		return
	}

	p, err := h.engine.Profile(r.Context(), auth.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sessions := p.ActiveSessions
	if sessions == nil {
		sessions = []session.Descriptor{}
	}
	writeJSON(w, http.StatusOK, profileBody{
		identityBody:   identityOf(p.Identity, ""),
		ActiveSessions: sessions,
	})
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		h.writeError(w, r, eduAuth.ErrUnauthorized)
		return
	}

	if err := h.engine.DeleteAccount(r.Context(), auth.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Account deleted successfully")
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		h.writeError(w, r, eduAuth.ErrUnauthorized)
		return
	}

	var body changePasswordBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.OldPassword == "" || body.NewPassword == "" {
		h.writeError(w, r, &eduAuth.ValidationError{Reason: "Current and new password are required"})
		return
	}

	if err := h.engine.ChangePassword(r.Context(), auth.UserID, body.OldPassword, body.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}

func (h *Handler) setTwoFactor(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		h.writeError(w, r, eduAuth.ErrUnauthorized)
		return
	}

	var body twoFactorToggleBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Enabled == nil {
		h.writeError(w, r, &eduAuth.ValidationError{Field: "enabled", Reason: "is required"})
		return
	}

	enabled, err := h.engine.SetTwoFactor(r.Context(), auth.UserID, *body.Enabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"twoFactorEnabled": enabled})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		h.writeError(w, r, eduAuth.ErrUnauthorized)
		return
	}

	if _, err := h.engine.LogoutAll(r.Context(), auth.UserID, auth.SessionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out from all other devices")
}
