// Package devotp lets local development read issued codes back over HTTP (GET /dev/otp) instead of
// receiving email. It is wired only when OTP_RETURN_TO_CLIENT is set outside production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store keeps the latest plain code per email.
type Store interface {
	Put(ctx context.Context, email, otp string, expiresAt time.Time)
	// Get returns ok false once the code has expired.
	Get(ctx context.Context, email string) (otp string, ok bool)
}

type devCode struct {
	code      string
	expiresAt time.Time
}

func (d devCode) live(now time.Time) bool { return d.expiresAt.After(now) }

// MemoryStore is a process-local Store. Expired codes are pruned on every write, so it stays
// as small as the set of emails with a live code.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]devCode
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: map[string]devCode{}, now: func() time.Time { return time.Now().UTC() }}
}

// Put replaces whatever code email had.
func (s *MemoryStore) Put(_ context.Context, email, otp string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, c := range s.codes {
		if !c.live(now) {
			delete(s.codes, k)
		}
	}
	s.codes[email] = devCode{code: otp, expiresAt: expiresAt}
}

// Get returns the live code for email, dropping it if it has expired.
func (s *MemoryStore) Get(_ context.Context, email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[email]
	if !ok {
		return "", false
	}
	if !c.live(s.now()) {
		delete(s.codes, email)
		return "", false
	}
	return c.code, true
}

// size reports how many codes are held, including any expired ones not yet pruned.
func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
