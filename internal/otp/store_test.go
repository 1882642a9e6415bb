package otp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"connections-portal/backend/internal/otp/domain"
)

func newChallenge(identity string, expiresAt time.Time) *domain.Challenge {
	return &domain.Challenge{
		Identity:  identity,
		CodeHash:  HashCode("123456"),
		IssuedAt:  expiresAt.Add(-10 * time.Minute),
		ExpiresAt: expiresAt,
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(5 * time.Minute)

	store.Put(ctx, newChallenge("user@example.com", expiresAt))

	c, ok := store.Get(ctx, "user@example.com")
	if !ok {
		t.Fatal("Get should return challenge after Put")
	}
	if c.Identity != "user@example.com" {
		t.Errorf("identity = %q, want %q", c.Identity, "user@example.com")
	}
	if c.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", c.Attempts)
	}
	if !c.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expiresAt = %v, want %v", c.ExpiresAt, expiresAt)
	}
}

func TestMemoryStore_Get_ReturnsFalseWhenMissing(t *testing.T) {
	store := NewMemoryStore()

	c, ok := store.Get(context.Background(), "nobody@example.com")
	if ok {
		t.Error("Get should return false when challenge is missing")
	}
	if c != nil {
		t.Errorf("challenge = %+v, want nil", c)
	}
}

func TestMemoryStore_Get_ReturnsExpiredChallenge(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, newChallenge("user@example.com", time.Now().UTC().Add(-time.Minute)))

	c, ok := store.Get(ctx, "user@example.com")
	if !ok {
		t.Fatal("Get should return expired challenges; expiry is decided by the caller")
	}
	if !c.Expired(time.Now().UTC()) {
		t.Error("challenge should report expired")
	}
}

func TestMemoryStore_Get_ReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, newChallenge("user@example.com", time.Now().UTC().Add(time.Minute)))

	c, _ := store.Get(ctx, "user@example.com")
	c.Attempts = 99

	again, _ := store.Get(ctx, "user@example.com")
	if again.Attempts != 0 {
		t.Errorf("attempts = %d, mutating a returned challenge must not change the store", again.Attempts)
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(time.Minute)

	first := newChallenge("user@example.com", expiresAt)
	first.Attempts = 2
	store.Put(ctx, first)

	second := newChallenge("user@example.com", expiresAt)
	second.CodeHash = HashCode("999999")
	store.Put(ctx, second)

	c, _ := store.Get(ctx, "user@example.com")
	if c.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 after replacement", c.Attempts)
	}
	if c.CodeHash != HashCode("999999") {
		t.Error("code hash should be the replacement's")
	}
	if store.size() != 1 {
		t.Errorf("size = %d, want 1", store.size())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, newChallenge("user@example.com", time.Now().UTC().Add(time.Minute)))

	store.Delete(ctx, "user@example.com")
	store.Delete(ctx, "user@example.com")

	if _, ok := store.Get(ctx, "user@example.com"); ok {
		t.Error("Get should return false after Delete")
	}
}

func TestMemoryStore_IncrementAttempts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, newChallenge("user@example.com", time.Now().UTC().Add(time.Minute)))

	for want := 1; want <= 3; want++ {
		got, ok := store.IncrementAttempts(ctx, "user@example.com")
		if !ok {
			t.Fatal("IncrementAttempts should find the challenge")
		}
		if got != want {
			t.Errorf("attempts = %d, want %d", got, want)
		}
	}

	if _, ok := store.IncrementAttempts(ctx, "missing@example.com"); ok {
		t.Error("IncrementAttempts should return false when missing")
	}
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	store.Put(ctx, newChallenge("old@example.com", now.Add(-time.Second)))
	store.Put(ctx, newChallenge("fresh@example.com", now.Add(time.Minute)))

	if n := store.DeleteExpired(now); n != 1 {
		t.Errorf("DeleteExpired = %d, want 1", n)
	}
	if _, ok := store.Get(ctx, "old@example.com"); ok {
		t.Error("expired challenge should be removed")
	}
	if _, ok := store.Get(ctx, "fresh@example.com"); !ok {
		t.Error("fresh challenge should remain")
	}
}

func TestMemoryStore_RunSweeper(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Put(ctx, newChallenge("old@example.com", time.Now().UTC().Add(-time.Second)))

	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 5*time.Millisecond, nil)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for store.size() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.size() != 0 {
		t.Error("sweeper should remove expired challenges")
	}
	cancel()
	<-done
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(5 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			store.Put(ctx, newChallenge(fmt.Sprintf("user%d@example.com", id), expiresAt))
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			identity := fmt.Sprintf("user%d@example.com", id)
			store.Get(ctx, identity)
			store.IncrementAttempts(ctx, identity)
		}(i)
	}
	wg.Wait()
	// If there's a race condition, the test will fail with -race flag
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("user@example.com")
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50 (lost updates mean the lock did not serialize)", counter)
	}
	if km.size() != 0 {
		t.Errorf("lock entries = %d, want 0 after all unlocks", km.size())
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock("a@example.com")
	acquired := make(chan struct{})
	go func() {
		unlockB := km.Lock("b@example.com")
		unlockB()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key should not block")
	}
	unlockA()
}
