package otp

import (
	"context"
	"sync"
	"time"

	"connections-portal/backend/internal/otp/domain"
)

// Store holds at most one outstanding Challenge per identity. Contents live only for the process lifetime.
type Store interface {
	// Put stores c under c.Identity, replacing any existing challenge for that identity.
	Put(ctx context.Context, c *domain.Challenge)
	// Get returns a copy of the challenge for identity. Returns ok false if missing.
	// Expiry is not evaluated here; callers decide what an expired challenge means.
	Get(ctx context.Context, identity string) (c *domain.Challenge, ok bool)
	// Delete removes the challenge for identity. No-op if missing.
	Delete(ctx context.Context, identity string)
	// IncrementAttempts adds one failed attempt and returns the new count. Returns ok false if missing.
	IncrementAttempts(ctx context.Context, identity string) (attempts int, ok bool)
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]domain.Challenge
}

// NewMemoryStore returns a new in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]domain.Challenge)}
}

// Put stores c under c.Identity.
func (s *MemoryStore) Put(ctx context.Context, c *domain.Challenge) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[c.Identity] = *c
}

// Get returns a copy of the challenge for identity.
func (s *MemoryStore) Get(ctx context.Context, identity string) (*domain.Challenge, bool) {
	s.mu.RLock()
	c, ok := s.m[identity]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &c, true
}

// Delete removes the challenge for identity.
func (s *MemoryStore) Delete(ctx context.Context, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, identity)
}

// IncrementAttempts adds one failed attempt to the challenge for identity.
func (s *MemoryStore) IncrementAttempts(ctx context.Context, identity string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[identity]
	if !ok {
		return 0, false
	}
	c.Attempts++
	s.m[identity] = c
	return c.Attempts, true
}

// size returns the number of stored challenges, expired or not.
func (s *MemoryStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// DeleteExpired removes every challenge whose expiry is before now and returns how many were removed.
func (s *MemoryStore) DeleteExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.m {
		if c.Expired(now) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// RunSweeper calls DeleteExpired every interval until ctx is done. Blocks; run it in a goroutine.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, nowF func() time.Time) {
	if interval <= 0 {
		return
	}
	if nowF == nil {
		nowF = func() time.Time { return time.Now().UTC() }
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.DeleteExpired(nowF())
		}
	}
}
