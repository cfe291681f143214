package handler

import (
	"encoding/json"
	"net/http"

	"github.com/thinlam/otp-server/internal/otp"
	"github.com/thinlam/otp-server/internal/pkg/validate"
)

// OTPHandler exposes OTP issuance and verification.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler {
	return &OTPHandler{svc: svc}
}

// SendOTPRequest carries the public send-otp payload. Account selects the
// brand; empty falls back to the default tenant.
type SendOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Account string `json:"account"`
}

type VerifyOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	OTP     string `json:"otp" validate:"required"`
	Account string `json:"account"`
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Request(r.Context(), req.Account, req.Email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "OTP sent via " + res.Tenant,
		OTP:     res.Code, // populated only when the echo-code dev toggle is on
	})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Verify(r.Context(), req.Account, req.Email, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "OTP verified",
		Token:   res.Receipt,
	})
}
