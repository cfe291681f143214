// Package tenant holds the registry of configured brands. It is populated
// once at startup and serves pure lookups afterwards: sender identity and
// branding for OTP mail, and the ordered directory candidates used during
// password reset.
package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thinlam/otp-server/internal/config"
	"github.com/thinlam/otp-server/internal/domain"
)

// ErrNoTenants is fatal at startup: the process refuses to serve with an
// empty tenant set.
var ErrNoTenants = errors.New("no tenant configured")

// Registry maps tenant keys to their immutable configuration.
type Registry struct {
	byKey      map[string]*domain.Tenant
	order      []string // declaration order, drives fallback and verify-any sweeps
	defaultKey string
}

// NewRegistry builds the registry from loaded configuration. It fails when
// no tenant is declared at all; individual tenants with missing sender
// secrets are kept but rejected per-request by Resolve.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	if len(cfg.Tenants) == 0 {
		return nil, ErrNoTenants
	}

	r := &Registry{byKey: make(map[string]*domain.Tenant)}
	for _, tc := range cfg.Tenants {
		key := normalize(tc.Key)
		if _, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate tenant key %q", key)
		}

		theme := domain.DefaultTheme()
		if tc.ThemePrimary != "" {
			theme.Primary = tc.ThemePrimary
		}
		if tc.ThemeAccent != "" {
			theme.Accent = tc.ThemeAccent
		}

		subject := tc.Subject
		if subject == "" {
			subject = fmt.Sprintf("%s • Your verification code", tc.DisplayName)
		}
		support := tc.Support
		if support == "" {
			support = tc.SMTPUsername
		}

		r.byKey[key] = &domain.Tenant{
			Key:            key,
			DisplayName:    tc.DisplayName,
			SMTPUsername:   tc.SMTPUsername,
			SMTPPassword:   tc.SMTPPassword,
			From:           tc.From,
			Subject:        subject,
			Support:        support,
			Theme:          theme,
			DirectoryTable: tc.DirectoryTable,
			ServiceAccount: tc.ServiceAccount,
		}
		r.order = append(r.order, key)
	}

	r.defaultKey = normalize(cfg.DefaultTenant)
	if _, ok := r.byKey[r.defaultKey]; !ok {
		r.defaultKey = r.order[0]
	}
	return r, nil
}

// Resolve returns the tenant for the given hint, falling back to the
// default tenant when the hint is empty. Unknown keys are client errors;
// a known tenant without sender secrets is a server-side misconfiguration.
func (r *Registry) Resolve(hint string) (*domain.Tenant, error) {
	key := normalize(hint)
	if key == "" {
		key = r.defaultKey
	}
	t, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("unknown tenant %q: %w", key, domain.ErrBadRequest)
	}
	if !t.HasSender() {
		return nil, fmt.Errorf("tenant %q has no sender credentials: %w", key, domain.ErrUnavailable)
	}
	return t, nil
}

// Lookup returns the tenant for an explicit key without checking sender
// credentials. Used by flows that never send mail (verification, reset).
func (r *Registry) Lookup(hint string) (*domain.Tenant, bool) {
	t, ok := r.byKey[normalize(hint)]
	return t, ok
}

// Candidates returns every tenant in fallback order: the hinted tenant
// first when it exists, then the rest in declaration order.
func (r *Registry) Candidates(hint string) []*domain.Tenant {
	preferred := normalize(hint)
	if preferred == "" {
		preferred = r.defaultKey
	}

	out := make([]*domain.Tenant, 0, len(r.order))
	if t, ok := r.byKey[preferred]; ok {
		out = append(out, t)
	}
	for _, key := range r.order {
		if key == preferred {
			continue
		}
		out = append(out, r.byKey[key])
	}
	return out
}

// Keys returns all tenant keys in declaration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

// DefaultKey returns the key used when a request carries no tenant hint.
func (r *Registry) DefaultKey() string { return r.defaultKey }

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
