package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	token   string
	expires time.Time
}

// Locker implements ports.CreditLocker within one process.
type Locker struct {
	mu     sync.Mutex
	leases map[uuid.UUID]lease
	now    func() time.Time
}

// NewLocker creates an in-process Locker.
func NewLocker() *Locker {
	return &Locker{leases: make(map[uuid.UUID]lease), now: time.Now}
}

func (l *Locker) Acquire(ctx context.Context, creditID uuid.UUID, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		return "", false, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.leases[creditID]; ok && now.Before(cur.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.leases[creditID] = lease{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, creditID uuid.UUID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.leases[creditID]
	if !ok || cur.token != token {
		return fmt.Errorf("credit lock %s was not held by this token", creditID)
	}
	delete(l.leases, creditID)
	return nil
}

func (l *Locker) Extend(ctx context.Context, creditID uuid.UUID, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cur, ok := l.leases[creditID]
	if !ok || cur.token != token || !now.Before(cur.expires) {
		return false, nil
	}
	l.leases[creditID] = lease{token: token, expires: now.Add(ttl)}
	return true, nil
}

// IdempotencyCache implements ports.IdempotencyCache within one process.
type IdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value   []byte
	expires time.Time
}

// NewIdempotencyCache creates an in-process IdempotencyCache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: append([]byte(nil), value...), expires: c.now().Add(ttl)}
	return nil
}

func (c *IdempotencyCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.entries[key] = cacheEntry{value: []byte("1"), expires: c.now().Add(ttl)}
	return true, nil
}

func (c *IdempotencyCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// live must be called with mu held.
func (c *IdempotencyCache) live(key string) (cacheEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return cacheEntry{}, false
	}
	return e, true
}
