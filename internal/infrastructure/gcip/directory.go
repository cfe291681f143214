// Package gcip binds a tenant to its Google Identity Platform project via
// the Identity Toolkit API.
package gcip

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thinlam/otp-server/internal/directory"
	"github.com/thinlam/otp-server/internal/otp"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// Directory is one tenant's Identity Platform project, authenticated with
// that tenant's service account.
type Directory struct {
	svc       *identitytoolkit.Service
	tenantKey string
}

// NewDirectory builds the Identity Toolkit client from the raw
// service-account credential (JSON or base64-encoded JSON).
func NewDirectory(ctx context.Context, tenantKey, rawServiceAccount string) (*Directory, error) {
	creds, err := ParseServiceAccount(rawServiceAccount)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantKey, err)
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("tenant %s: identitytoolkit client: %w", tenantKey, err)
	}
	return &Directory{svc: svc, tenantKey: tenantKey}, nil
}

func (d *Directory) TenantKey() string { return d.tenantKey }

func (d *Directory) FindByEmail(ctx context.Context, email string) (*directory.Account, error) {
	resp, err := d.svc.Relyingparty.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		Email: []string{otp.NormalizeEmail(email)},
	}).Context(ctx).Do()
	if err != nil {
		// The API reports a missing user as an error, not an empty list.
		if isUserNotFound(err) {
			return nil, directory.ErrUserNotFound
		}
		return nil, fmt.Errorf("get account info: %w", err)
	}
	if len(resp.Users) == 0 {
		return nil, directory.ErrUserNotFound
	}
	u := resp.Users[0]
	return &directory.Account{ID: u.LocalId, Email: u.Email}, nil
}

func isUserNotFound(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return strings.Contains(gerr.Message, "USER_NOT_FOUND")
}

func (d *Directory) SetPassword(ctx context.Context, accountID, newPassword string) error {
	_, err := d.svc.Relyingparty.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		LocalId:  accountID,
		Password: newPassword,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("set account info: %w", err)
	}
	return nil
}
