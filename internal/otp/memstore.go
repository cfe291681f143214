package otp

import (
	"context"
	"sync"
	"time"

	"github.com/thinlam/otp-server/internal/domain"
	"github.com/thinlam/otp-server/internal/pkg/id"
)

// MemStore is the in-memory challenge store: a mutex-guarded map with lazy
// expiry eviction. Entries are bounded by active users and self-evict on
// first post-expiry access, so no background sweeper is needed. State does
// not survive a process restart.
type MemStore struct {
	mu         sync.Mutex
	challenges map[memKey]*domain.Challenge
	now        func() time.Time
}

type memKey struct {
	tenant string
	email  string
}

func NewMemStore() *MemStore {
	return &MemStore{
		challenges: make(map[memKey]*domain.Challenge),
		now:        time.Now,
	}
}

func (s *MemStore) key(tenant, email string) memKey {
	return memKey{tenant: NormalizeEmail(tenant), email: NormalizeEmail(email)}
}

func (s *MemStore) Issue(_ context.Context, tenant, email, code string, ttl time.Duration) error {
	if NormalizeEmail(email) == "" {
		return domain.ErrBadRequest
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[s.key(tenant, email)] = &domain.Challenge{
		ChallengeID: id.New(),
		Tenant:      NormalizeEmail(tenant),
		Email:       NormalizeEmail(email),
		Code:        code,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}
	return nil
}

func (s *MemStore) Verify(_ context.Context, tenant, email, code string) (Outcome, error) {
	now := s.now()
	k := s.key(tenant, email)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[k]
	if !ok {
		return OutcomeNotFound, nil
	}
	if c.Expired(now) {
		delete(s.challenges, k)
		return OutcomeExpired, nil
	}
	if c.Code != code {
		return OutcomeMismatch, nil
	}
	delete(s.challenges, k) // one-time use
	return OutcomeOK, nil
}

func (s *MemStore) Age(_ context.Context, tenant, email string) (time.Duration, bool, error) {
	now := s.now()
	k := s.key(tenant, email)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[k]
	if !ok {
		return 0, false, nil
	}
	if c.Expired(now) {
		delete(s.challenges, k)
		return 0, false, nil
	}
	return now.Sub(time.Unix(c.CreatedAt, 0)), true, nil
}

func (s *MemStore) Revoke(_ context.Context, tenant, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, s.key(tenant, email))
	return nil
}
