package otp

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thinlam/otp-server/internal/config"
	"github.com/thinlam/otp-server/internal/domain"
	"github.com/thinlam/otp-server/internal/tenant"
)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(t *domain.Tenant, to, subject, html, text string) error {
	return m.Called(t, to, subject, html, text).Error(0)
}

type mockAlerts struct{ mock.Mock }

func (m *mockAlerts) PublishAlert(ctx context.Context, subject, message string) error {
	return m.Called(ctx, subject, message).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(tenantKey, email string) (string, error) {
	args := m.Called(tenantKey, email)
	return args.String(0), args.Error(1)
}

// --- builders ---

func testRegistry(t *testing.T) *tenant.Registry {
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

func newTestService(t *testing.T, store Store, ml Mailer, opts func(*ServiceDeps)) Service {
	t.Helper()
	deps := ServiceDeps{
		Store:   store,
		Tenants: testRegistry(t),
		Mailer:  ml,
		TTL:     10 * time.Minute,
	}
	if opts != nil {
		opts(&deps)
	}
	return NewService(deps)
}

// --- Request ---

func TestRequest_MissingEmail(t *testing.T) {
	svc := newTestService(t, NewMemStore(), &mockMailer{}, nil)

	_, err := svc.Request(context.Background(), "efb", "   ")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRequest_UnknownTenant(t *testing.T) {
	svc := newTestService(t, NewMemStore(), &mockMailer{}, nil)

	_, err := svc.Request(context.Background(), "nope", "a@x.com")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRequest_TenantWithoutSenderCredentials(t *testing.T) {
	reg, err := tenant.NewRegistry(&config.Config{
		DefaultTenant: "bare",
		Tenants:       []config.TenantConfig{{Key: "bare", DisplayName: "Bare"}},
	})
	require.NoError(t, err)

	svc := NewService(ServiceDeps{
		Store:   NewMemStore(),
		Tenants: reg,
		Mailer:  &mockMailer{},
		TTL:     time.Minute,
	})

	_, err = svc.Request(context.Background(), "bare", "a@x.com")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestRequest_StoresAndMailsSixDigitCode(t *testing.T) {
	store := NewMemStore()
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, "a@x.com", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, store, ml, func(d *ServiceDeps) { d.EchoCode = true })

	res, err := svc.Request(context.Background(), "efb", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "efb", res.Tenant)
	assert.Regexp(t, regexp.MustCompile(`^[1-9][0-9]{5}$`), res.Code)

	out, err := store.Verify(context.Background(), "efb", "a@x.com", res.Code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out)
	ml.AssertExpectations(t)
}

func TestRequest_DefaultsToPrimaryTenant(t *testing.T) {
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, "a@x.com", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, NewMemStore(), ml, nil)

	res, err := svc.Request(context.Background(), "", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "efb", res.Tenant)
}

func TestRequest_CodeIsNotEchoedByDefault(t *testing.T) {
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, NewMemStore(), ml, nil)

	res, err := svc.Request(context.Background(), "efb", "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, res.Code)
}

func TestRequest_CooldownRejectsEarlyResend(t *testing.T) {
	store := NewMemStore()
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	base := time.Now()
	store.now = func() time.Time { return base }

	svc := newTestService(t, store, ml, func(d *ServiceDeps) { d.Cooldown = time.Minute; d.TTL = time.Minute })

	_, err := svc.Request(context.Background(), "efb", "a@x.com")
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), "efb", "a@x.com")
	require.ErrorIs(t, err, domain.ErrTooManyRequests)

	var cooldown *domain.CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.Greater(t, cooldown.RetryAfterSeconds(), int64(0))

	// After the window elapses a new request goes through.
	store.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	_, err = svc.Request(context.Background(), "efb", "a@x.com")
	assert.NoError(t, err)
}

func TestRequest_CooldownWindowShorterThanTTL(t *testing.T) {
	store := NewMemStore()
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	base := time.Now()
	store.now = func() time.Time { return base }

	svc := newTestService(t, store, ml, func(d *ServiceDeps) {
		d.Cooldown = 30 * time.Second
		d.TTL = 10 * time.Minute
	})

	_, err := svc.Request(context.Background(), "efb", "a@x.com")
	require.NoError(t, err)

	// Inside the window: rejected, with the wait bounded by the window
	// rather than by the challenge's remaining lifetime.
	store.now = func() time.Time { return base.Add(10 * time.Second) }
	_, err = svc.Request(context.Background(), "efb", "a@x.com")
	require.ErrorIs(t, err, domain.ErrTooManyRequests)

	var cooldown *domain.CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, int64(20), cooldown.RetryAfterSeconds())

	// Once the window passes a resend succeeds even though the prior
	// challenge is still minutes from expiring.
	store.now = func() time.Time { return base.Add(31 * time.Second) }
	_, err = svc.Request(context.Background(), "efb", "a@x.com")
	assert.NoError(t, err)
}

func TestRequest_NoCooldownReplacesFreely(t *testing.T) {
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, NewMemStore(), ml, nil)

	_, err := svc.Request(context.Background(), "efb", "a@x.com")
	require.NoError(t, err)
	_, err = svc.Request(context.Background(), "efb", "a@x.com")
	assert.NoError(t, err)
}

func TestRequest_DeliveryFailureLeavesChallengeStanding(t *testing.T) {
	store := NewMemStore()
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := newTestService(t, store, ml, func(d *ServiceDeps) { d.EchoCode = true })

	_, err := svc.Request(context.Background(), "efb", "a@x.com")
	require.ErrorIs(t, err, domain.ErrDelivery)

	// The code was persisted before the send attempt and stays valid.
	_, live, err := store.Age(context.Background(), "efb", "a@x.com")
	require.NoError(t, err)
	assert.True(t, live)
}

func TestRequest_DeliveryFailureRevokesWhenConfigured(t *testing.T) {
	store := NewMemStore()
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := newTestService(t, store, ml, func(d *ServiceDeps) { d.RevokeOnDeliveryFailure = true })

	_, err := svc.Request(context.Background(), "efb", "a@x.com")
	require.ErrorIs(t, err, domain.ErrDelivery)

	_, live, err := store.Age(context.Background(), "efb", "a@x.com")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestRequest_DeliveryFailurePublishesAlert(t *testing.T) {
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	alerts := &mockAlerts{}
	alerts.On("PublishAlert", mock.Anything, "OTP delivery failure", mock.Anything).Return(nil)

	svc := newTestService(t, NewMemStore(), ml, func(d *ServiceDeps) { d.Alerts = alerts })

	_, err := svc.Request(context.Background(), "efb", "a@x.com")
	require.ErrorIs(t, err, domain.ErrDelivery)
	alerts.AssertExpectations(t)
}

// --- Verify ---

func issueCode(t *testing.T, svc Service, tenantKey, email string) string {
	t.Helper()
	res, err := svc.Request(context.Background(), tenantKey, email)
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)
	return res.Code
}

func echoService(t *testing.T, store Store) Service {
	t.Helper()
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return newTestService(t, store, ml, func(d *ServiceDeps) { d.EchoCode = true })
}

func TestVerify_SingleTenantSuccess(t *testing.T) {
	svc := echoService(t, NewMemStore())
	code := issueCode(t, svc, "efb", "a@x.com")

	res, err := svc.Verify(context.Background(), "efb", "a@x.com", code)
	require.NoError(t, err)
	assert.Equal(t, "efb", res.Tenant)
}

func TestVerify_MissingInput(t *testing.T) {
	svc := echoService(t, NewMemStore())

	_, err := svc.Verify(context.Background(), "efb", "", "123456")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = svc.Verify(context.Background(), "efb", "a@x.com", "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestVerify_WrongTenantDoesNotMatch(t *testing.T) {
	svc := echoService(t, NewMemStore())
	code := issueCode(t, svc, "efb", "a@x.com")

	_, err := svc.Verify(context.Background(), "mathmaster", "a@x.com", code)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, OutcomeNotFound, verr.Outcome)
}

func TestVerify_AnyTenantFindsMatch(t *testing.T) {
	svc := echoService(t, NewMemStore())
	code := issueCode(t, svc, "mathmaster", "a@x.com")

	res, err := svc.Verify(context.Background(), "", "a@x.com", code)
	require.NoError(t, err)
	assert.Equal(t, "mathmaster", res.Tenant)
}

func TestVerify_AnyTenantPrefersMismatchOverNotFound(t *testing.T) {
	svc := echoService(t, NewMemStore())
	issueCode(t, svc, "mathmaster", "a@x.com")

	_, err := svc.Verify(context.Background(), "", "a@x.com", "000000")
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, OutcomeMismatch, verr.Outcome)
	assert.Equal(t, "code is incorrect", verr.Error())
}

func TestVerify_ReasonStrings(t *testing.T) {
	assert.Equal(t, "code does not exist or has expired", (&VerifyError{Outcome: OutcomeNotFound}).Error())
	assert.Equal(t, "code has expired", (&VerifyError{Outcome: OutcomeExpired}).Error())
	assert.Equal(t, "code is incorrect", (&VerifyError{Outcome: OutcomeMismatch}).Error())
}

func TestVerify_FailuresMatchUnauthorized(t *testing.T) {
	svc := echoService(t, NewMemStore())

	_, err := svc.Verify(context.Background(), "efb", "a@x.com", "123456")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerify_SuccessAttachesReceipt(t *testing.T) {
	store := NewMemStore()
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	signer := &mockSigner{}
	signer.On("Sign", "efb", "a@x.com").Return("receipt-token", nil)

	svc := newTestService(t, store, ml, func(d *ServiceDeps) {
		d.EchoCode = true
		d.Receipts = signer
	})

	code := issueCode(t, svc, "efb", "a@x.com")
	res, err := svc.Verify(context.Background(), "efb", "a@x.com", code)
	require.NoError(t, err)
	assert.Equal(t, "receipt-token", res.Receipt)
}

func TestVerify_ReceiptFailureDoesNotFailVerification(t *testing.T) {
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	signer := &mockSigner{}
	signer.On("Sign", "efb", "a@x.com").Return("", errors.New("no key"))

	svc := newTestService(t, NewMemStore(), ml, func(d *ServiceDeps) {
		d.EchoCode = true
		d.Receipts = signer
	})

	code := issueCode(t, svc, "efb", "a@x.com")
	res, err := svc.Verify(context.Background(), "efb", "a@x.com", code)
	require.NoError(t, err)
	assert.Empty(t, res.Receipt)
}

func TestGenerateCode_FixedWidthRange(t *testing.T) {
	re := regexp.MustCompile(`^[1-9][0-9]{5}$`)
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}
