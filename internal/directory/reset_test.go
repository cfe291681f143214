package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thinlam/otp-server/internal/config"
	"github.com/thinlam/otp-server/internal/domain"
	"github.com/thinlam/otp-server/internal/tenant"
)

type mockDirectory struct {
	mock.Mock
	key string
}

func (m *mockDirectory) TenantKey() string { return m.key }

func (m *mockDirectory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	args := m.Called(ctx, email)
	if acct := args.Get(0); acct != nil {
		return acct.(*Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) SetPassword(ctx context.Context, accountID, newPassword string) error {
	return m.Called(ctx, accountID, newPassword).Error(0)
}

func resetRegistry(t *testing.T) *tenant.Registry {
	t.Helper()
	reg, err := tenant.NewRegistry(&config.Config{
		DefaultTenant: "efb",
		Tenants: []config.TenantConfig{
			{Key: "efb", DisplayName: "English For Beginner", SMTPUsername: "efb@example.com", SMTPPassword: "secret"},
			{Key: "mathmaster", DisplayName: "Math Master", SMTPUsername: "mm@example.com", SMTPPassword: "secret"},
		},
	})
	require.NoError(t, err)
	return reg
}

func TestResetPassword_MissingInput(t *testing.T) {
	svc := NewResetService(resetRegistry(t), nil)

	err := svc.ResetPassword(context.Background(), "efb", "", "hunter22")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	err = svc.ResetPassword(context.Background(), "efb", "a@x.com", "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestResetPassword_NoDirectoriesConfigured(t *testing.T) {
	svc := NewResetService(resetRegistry(t), nil)

	err := svc.ResetPassword(context.Background(), "efb", "a@x.com", "hunter22")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestResetPassword_HintedDirectoryHit(t *testing.T) {
	efb := &mockDirectory{key: "efb"}
	mm := &mockDirectory{key: "mathmaster"}
	mm.On("FindByEmail", mock.Anything, "a@x.com").Return(&Account{ID: "u1", Email: "a@x.com"}, nil)
	mm.On("SetPassword", mock.Anything, "u1", "hunter22").Return(nil)

	svc := NewResetService(resetRegistry(t), []Directory{efb, mm})

	err := svc.ResetPassword(context.Background(), "mathmaster", "a@x.com", "hunter22")
	require.NoError(t, err)

	// The hinted tenant comes first, so efb is never consulted.
	efb.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	mm.AssertExpectations(t)
}

func TestResetPassword_NotFoundAdvancesToNextDirectory(t *testing.T) {
	efb := &mockDirectory{key: "efb"}
	efb.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, ErrUserNotFound)
	mm := &mockDirectory{key: "mathmaster"}
	mm.On("FindByEmail", mock.Anything, "a@x.com").Return(&Account{ID: "u2", Email: "a@x.com"}, nil)
	mm.On("SetPassword", mock.Anything, "u2", "hunter22").Return(nil)

	svc := NewResetService(resetRegistry(t), []Directory{efb, mm})

	err := svc.ResetPassword(context.Background(), "", "a@x.com", "hunter22")
	require.NoError(t, err)
	efb.AssertExpectations(t)
	mm.AssertExpectations(t)
}

func TestResetPassword_ProviderErrorStopsTheLoop(t *testing.T) {
	efb := &mockDirectory{key: "efb"}
	efb.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("deadline exceeded"))
	mm := &mockDirectory{key: "mathmaster"}

	svc := NewResetService(resetRegistry(t), []Directory{efb, mm})

	err := svc.ResetPassword(context.Background(), "efb", "a@x.com", "hunter22")
	assert.ErrorIs(t, err, domain.ErrProvider)
	mm.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func TestResetPassword_UpdateFailureIsProviderError(t *testing.T) {
	efb := &mockDirectory{key: "efb"}
	efb.On("FindByEmail", mock.Anything, "a@x.com").Return(&Account{ID: "u1", Email: "a@x.com"}, nil)
	efb.On("SetPassword", mock.Anything, "u1", "hunter22").Return(errors.New("conditional check failed"))

	svc := NewResetService(resetRegistry(t), []Directory{efb})

	err := svc.ResetPassword(context.Background(), "efb", "a@x.com", "hunter22")
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestResetPassword_AllDirectoriesMiss(t *testing.T) {
	efb := &mockDirectory{key: "efb"}
	efb.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, ErrUserNotFound)
	mm := &mockDirectory{key: "mathmaster"}
	mm.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, ErrUserNotFound)

	svc := NewResetService(resetRegistry(t), []Directory{efb, mm})

	err := svc.ResetPassword(context.Background(), "", "a@x.com", "hunter22")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	efb.AssertExpectations(t)
	mm.AssertExpectations(t)
}
