package httpapi

import (
	"errors"
	"net/http"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/store"
)

const teacherRequiredMessage = "Access denied. Teacher account required."

func (h *Handler) registerTeacher(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Register(r.Context(), eduAuth.RegisterRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Role:     store.RoleTeacher,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, identityOf(res.User, res.Token))
}

func (h *Handler) loginTeacher(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Login(r.Context(), eduAuth.LoginRequest{
		Email:        body.Email,
		Password:     body.Password,
		RequiredRole: store.RoleTeacher,
	})
	if err != nil {
		h.writeTeacherError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (h *Handler) writeTeacherError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, eduAuth.ErrRoleMismatch) {
		writeJSON(w, http.StatusForbidden, errorBody{Code: ReasonRoleMismatch, Message: teacherRequiredMessage})
		return
	}
	h.writeError(w, r, err)
}
