package handler

import (
	"encoding/json"
	"net/http"

	"github.com/thinlam/otp-server/internal/directory"
	"github.com/thinlam/otp-server/internal/pkg/validate"
)

// ResetHandler exposes the password reset endpoint. It assumes the caller
// completed OTP verification beforehand; that ordering is the client's
// responsibility and is not enforced here.
type ResetHandler struct {
	svc directory.ResetService
}

func NewResetHandler(svc directory.ResetService) *ResetHandler {
	return &ResetHandler{svc: svc}
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
	Account     string `json:"account"`
}

func (h *ResetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Account, req.Email, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "password updated"})
}
