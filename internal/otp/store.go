package otp

import (
	"context"
	"strings"
	"time"
)

// Outcome is the result of checking a supplied code against the store.
type Outcome int

const (
	// OutcomeNotFound: no challenge exists for the (tenant, email) pair;
	// either none was issued or it was already consumed or evicted.
	OutcomeNotFound Outcome = iota
	// OutcomeExpired: a challenge existed but its TTL had passed. The
	// store evicts it as a side effect of the check.
	OutcomeExpired
	// OutcomeMismatch: a live challenge exists but the supplied code is
	// wrong. The challenge stays in place.
	OutcomeMismatch
	// OutcomeOK: the code matched. The challenge is consumed (removed).
	OutcomeOK
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeExpired:
		return "expired"
	case OutcomeMismatch:
		return "mismatch"
	default:
		return "not_found"
	}
}

// Store holds outstanding OTP challenges keyed by (tenant, email). At most
// one live challenge exists per pair; Issue replaces any prior one.
// Implementations must make Verify's check-then-delete atomic so that of
// two concurrent correct-code verifications exactly one observes OutcomeOK.
type Store interface {
	// Issue creates or replaces the challenge for the pair with expiry now+ttl.
	Issue(ctx context.Context, tenant, email, code string, ttl time.Duration) error
	// Verify checks the supplied code and consumes the challenge on success.
	Verify(ctx context.Context, tenant, email, code string) (Outcome, error)
	// Age reports how long ago the pair's live challenge was issued and
	// whether one exists at all. An expired challenge counts as absent
	// and may be evicted as a side effect.
	Age(ctx context.Context, tenant, email string) (time.Duration, bool, error)
	// Revoke removes the pair's challenge if present.
	Revoke(ctx context.Context, tenant, email string) error
}

// NormalizeEmail canonicalises an address for use as a store key, making
// lookups resilient to client-side casing differences.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
