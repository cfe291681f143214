package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTooManyRequests = errors.New("too many requests")
	ErrUnavailable     = errors.New("service unavailable")
	ErrDelivery        = errors.New("delivery failed")
	ErrProvider        = errors.New("identity provider error")
)

// CooldownError is returned when an OTP is requested again before the
// previous challenge's cooldown window has elapsed. It matches
// ErrTooManyRequests under errors.Is and carries the remaining wait.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp already sent, retry in %ds", e.RetryAfterSeconds())
}

func (e *CooldownError) Is(target error) bool { return target == ErrTooManyRequests }

// RetryAfterSeconds rounds the remaining wait up to whole seconds, never
// reporting zero for a still-active cooldown.
func (e *CooldownError) RetryAfterSeconds() int64 {
	s := int64((e.Remaining + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
