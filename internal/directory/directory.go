// Package directory defines the identity-provider port and the password
// reset orchestration over multiple tenant directories.
package directory

import (
	"context"
	"errors"
)

// ErrUserNotFound is the only directory error that lets the reset loop
// advance to the next candidate; anything else stops it.
var ErrUserNotFound = errors.New("user not found in directory")

// Account is the minimal identity record a directory exposes.
type Account struct {
	ID    string
	Email string
}

// Directory is one isolated identity-provider project holding user
// credentials for a single tenant.
type Directory interface {
	TenantKey() string
	FindByEmail(ctx context.Context, email string) (*Account, error)
	SetPassword(ctx context.Context, accountID, newPassword string) error
}
