package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if the caller still owns it, so an
// expired holder cannot release a lock another request has since taken.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ErrLockNotHeld is returned by Release when the token no longer owns the lock.
var ErrLockNotHeld = errors.New("credit lock was not held or already expired")

// CreditLocker implements ports.CreditLocker with a single-key Redis lock.
type CreditLocker struct {
	client goredis.UniversalClient
	prefix string
}

// NewCreditLocker creates a Redis-backed per-credit lock.
func NewCreditLocker(client goredis.UniversalClient) *CreditLocker {
	return &CreditLocker{
		client: client,
		prefix: "lock:credit:",
	}
}

// Acquire tries once to take the lock. It does not wait.
func (l *CreditLocker) Acquire(ctx context.Context, creditID uuid.UUID, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		return "", false, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+creditID.String(), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis lock acquire: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lock if token still owns it.
func (l *CreditLocker) Release(ctx context.Context, creditID uuid.UUID, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + creditID.String()}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the lock's expiry to ttl from now. It reports false when token
// no longer owns the lock.
func (l *CreditLocker) Extend(ctx context.Context, creditID uuid.UUID, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	n, err := extendScript.Run(ctx, l.client, []string{l.prefix + creditID.String()}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis lock extend: %w", err)
	}
	return n == 1, nil
}
