package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thinlam/otp-server/internal/domain"
)

// Envelope is the uniform response wrapper. Field names follow the
// original public API of this service.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	OTP        string `json:"otp,omitempty"`
	Token      string `json:"token,omitempty"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Success: false, Message: msg})
}

// httpError maps domain sentinel errors to HTTP status codes. Policy
// rejections surface their reason; collaborator faults stay generic.
func httpError(w http.ResponseWriter, err error) {
	var cooldown *domain.CooldownError
	if errors.As(err, &cooldown) {
		writeJSON(w, http.StatusTooManyRequests, Envelope{
			Success:    false,
			Message:    cooldown.Error(),
			RetryAfter: cooldown.RetryAfterSeconds(),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrBadRequest), errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrDelivery):
		writeError(w, http.StatusInternalServerError, "could not send otp")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
