// Package otp implements the OTP challenge lifecycle: issuance with
// cooldown enforcement, storage with expiry, and single-use verification.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/thinlam/otp-server/internal/domain"
	"github.com/thinlam/otp-server/internal/tenant"
)

// Mailer delivers the branded OTP email using the tenant's sender identity.
type Mailer interface {
	Send(t *domain.Tenant, to, subject, html, text string) error
}

// AlertPublisher receives best-effort operational alerts (delivery failures).
type AlertPublisher interface {
	PublishAlert(ctx context.Context, subject, message string) error
}

// ReceiptSigner issues a signed proof-of-verification token. Informational
// only: no endpoint in this service requires it.
type ReceiptSigner interface {
	Sign(tenantKey, email string) (string, error)
}

// IssueResult reports an accepted OTP request. Code is populated only when
// the echo-code development toggle is on.
type IssueResult struct {
	Tenant string `json:"tenant"`
	Code   string `json:"otp,omitempty"`
}

// VerifyResult reports a successful verification.
type VerifyResult struct {
	Tenant  string `json:"tenant"`
	Receipt string `json:"token,omitempty"`
}

// VerifyError is a failed verification: a policy rejection, never a server
// fault. It matches domain.ErrUnauthorized under errors.Is.
type VerifyError struct {
	Outcome Outcome
}

func (e *VerifyError) Error() string {
	switch e.Outcome {
	case OutcomeExpired:
		return "code has expired"
	case OutcomeMismatch:
		return "code is incorrect"
	default:
		return "code does not exist or has expired"
	}
}

func (e *VerifyError) Is(target error) bool { return target == domain.ErrUnauthorized }

type Service interface {
	// Request issues a fresh challenge for (tenant, email) and mails the code.
	Request(ctx context.Context, tenantHint, email string) (*IssueResult, error)
	// Verify checks a supplied code. An empty tenantHint tries every
	// configured tenant in declaration order.
	Verify(ctx context.Context, tenantHint, email, code string) (*VerifyResult, error)
}

type service struct {
	store    Store
	tenants  *tenant.Registry
	mailer   Mailer
	alerts   AlertPublisher // may be nil
	receipts ReceiptSigner  // may be nil

	ttl          time.Duration
	cooldown     time.Duration
	echoCode     bool
	revokeOnFail bool
	generateCode func() (string, error)
}

type ServiceDeps struct {
	Store    Store
	Tenants  *tenant.Registry
	Mailer   Mailer
	Alerts   AlertPublisher
	Receipts ReceiptSigner

	TTL      time.Duration
	Cooldown time.Duration
	// EchoCode includes the generated code in the response. Development
	// only; defaults off and must be switched on explicitly.
	EchoCode bool
	// RevokeOnDeliveryFailure rolls back the stored challenge when the
	// mail send fails, instead of leaving it standing until expiry.
	RevokeOnDeliveryFailure bool
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:        deps.Store,
		tenants:      deps.Tenants,
		mailer:       deps.Mailer,
		alerts:       deps.Alerts,
		receipts:     deps.Receipts,
		ttl:          deps.TTL,
		cooldown:     deps.Cooldown,
		echoCode:     deps.EchoCode,
		revokeOnFail: deps.RevokeOnDeliveryFailure,
		generateCode: generateCode,
	}
}

// generateCode draws a uniformly random fixed-width 6-digit code. The range
// starts at 100000 so a leading zero is impossible by construction.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func (s *service) Request(ctx context.Context, tenantHint, email string) (*IssueResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("missing email: %w", domain.ErrBadRequest)
	}

	t, err := s.tenants.Resolve(tenantHint)
	if err != nil {
		return nil, err
	}

	// The cooldown check and the Issue below are not atomic: two
	// concurrent requests for the same pair can both pass and both send
	// mail. Issue replaces in place, so at most one challenge stays live
	// either way.
	if s.cooldown > 0 {
		age, live, err := s.store.Age(ctx, t.Key, email)
		if err != nil {
			return nil, fmt.Errorf("check cooldown: %w", err)
		}
		if live && age < s.cooldown {
			return nil, &domain.CooldownError{Remaining: s.cooldown - age}
		}
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	// Persist before sending: a transient mail failure must not silently
	// invalidate a code the user might still receive.
	if err := s.store.Issue(ctx, t.Key, email, code, s.ttl); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	html, text, err := renderEmail(t, email, code, s.ttl)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.Send(t, email, t.Subject, html, text); err != nil {
		slog.Error("otp delivery failed", "tenant", t.Key, "email", email, "err", err)
		if s.revokeOnFail {
			if rerr := s.store.Revoke(ctx, t.Key, email); rerr != nil {
				slog.Warn("failed to revoke challenge after delivery failure", "tenant", t.Key, "email", email, "err", rerr)
			}
		}
		if s.alerts != nil {
			msg := fmt.Sprintf("tenant=%s operation=send-otp err=%v", t.Key, err)
			if aerr := s.alerts.PublishAlert(ctx, "OTP delivery failure", msg); aerr != nil {
				slog.Warn("failed to publish delivery alert", "tenant", t.Key, "err", aerr)
			}
		}
		return nil, fmt.Errorf("could not send otp: %w", domain.ErrDelivery)
	}

	slog.Info("otp issued", "tenant", t.Key, "email", email, "ttl", s.ttl)

	res := &IssueResult{Tenant: t.Key}
	if s.echoCode {
		res.Code = code
	}
	return res, nil
}

func (s *service) Verify(ctx context.Context, tenantHint, email, code string) (*VerifyResult, error) {
	email = NormalizeEmail(email)
	if email == "" || code == "" {
		return nil, fmt.Errorf("missing email or otp: %w", domain.ErrBadRequest)
	}

	matched, outcome, err := s.verify(ctx, tenantHint, email, code)
	if err != nil {
		return nil, err
	}
	if outcome != OutcomeOK {
		slog.Info("otp rejected", "tenant", tenantHint, "email", email, "outcome", outcome.String())
		return nil, &VerifyError{Outcome: outcome}
	}

	res := &VerifyResult{Tenant: matched}
	if s.receipts != nil {
		receipt, err := s.receipts.Sign(matched, email)
		if err != nil {
			slog.Warn("failed to sign verification receipt", "tenant", matched, "err", err)
		} else {
			res.Receipt = receipt
		}
	}
	slog.Info("otp verified", "tenant", matched, "email", email)
	return res, nil
}

func (s *service) verify(ctx context.Context, tenantHint, email, code string) (string, Outcome, error) {
	if tenantHint != "" {
		t, ok := s.tenants.Lookup(tenantHint)
		if !ok {
			return "", 0, fmt.Errorf("unknown tenant %q: %w", tenantHint, domain.ErrBadRequest)
		}
		outcome, err := s.store.Verify(ctx, t.Key, email, code)
		return t.Key, outcome, err
	}

	// No tenant given: sweep every tenant in declaration order and keep
	// the most specific failure (mismatch beats expired beats not-found).
	best := OutcomeNotFound
	for _, key := range s.tenants.Keys() {
		outcome, err := s.store.Verify(ctx, key, email, code)
		if err != nil {
			return "", 0, err
		}
		if outcome == OutcomeOK {
			return key, outcome, nil
		}
		if outcome > best {
			best = outcome
		}
	}
	return "", best, nil
}
