package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thinlam/otp-server/internal/domain"
	"github.com/thinlam/otp-server/internal/tenant"
)

// ResetService updates a password across candidate tenant directories.
//
// Callers are expected to have completed OTP verification out of band;
// this service deliberately performs no OTP check of its own.
type ResetService interface {
	ResetPassword(ctx context.Context, tenantHint, email, newPassword string) error
}

type resetService struct {
	tenants     *tenant.Registry
	directories map[string]Directory // tenant key -> directory
}

func NewResetService(tenants *tenant.Registry, dirs []Directory) ResetService {
	byKey := make(map[string]Directory, len(dirs))
	for _, d := range dirs {
		byKey[d.TenantKey()] = d
	}
	return &resetService{tenants: tenants, directories: byKey}
}

// ResetPassword tries each candidate directory in order: the hinted
// tenant's first, then the rest in declaration order. "User not found"
// advances the loop; any other failure stops it immediately, because such
// errors are not evidence the user belongs to a different directory.
func (s *resetService) ResetPassword(ctx context.Context, tenantHint, email, newPassword string) error {
	email = strings.TrimSpace(email)
	if email == "" || newPassword == "" {
		return fmt.Errorf("missing email or new password: %w", domain.ErrBadRequest)
	}

	var candidates []Directory
	for _, t := range s.tenants.Candidates(tenantHint) {
		if d, ok := s.directories[t.Key]; ok {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no identity directory configured: %w", domain.ErrUnavailable)
	}

	for _, dir := range candidates {
		acct, err := dir.FindByEmail(ctx, email)
		if errors.Is(err, ErrUserNotFound) {
			continue
		}
		if err != nil {
			slog.Error("directory lookup failed", "tenant", dir.TenantKey(), "email", email, "err", err)
			return fmt.Errorf("directory %s lookup: %w", dir.TenantKey(), domain.ErrProvider)
		}
		if err := dir.SetPassword(ctx, acct.ID, newPassword); err != nil {
			slog.Error("password update failed", "tenant", dir.TenantKey(), "email", email, "err", err)
			return fmt.Errorf("directory %s update: %w", dir.TenantKey(), domain.ErrProvider)
		}
		slog.Info("password updated", "tenant", dir.TenantKey(), "email", email)
		return nil
	}

	return fmt.Errorf("account not found in any configured directory: %w", domain.ErrNotFound)
}
