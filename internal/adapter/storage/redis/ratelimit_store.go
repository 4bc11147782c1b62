package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// The first hit in a window sets its expiry, so INCR and PEXPIRE must run
// as one step or a crash between them leaves a counter that never resets.
var windowScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RateLimitStore counts API calls per caller and endpoint group.
type RateLimitStore struct {
	client goredis.UniversalClient
	prefix string
}

func NewRateLimitStore(client goredis.UniversalClient) *RateLimitStore {
	return &RateLimitStore{client: client, prefix: "rl:"}
}

type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // unix seconds
}

// Allow counts one call against key. A window opens on the first call and
// lasts for window.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	if window < time.Second {
		return nil, fmt.Errorf("rate limit window must be at least 1s, got %s", window)
	}

	vals, err := windowScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("count rate limit window: %w", err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("count rate limit window: unexpected reply %v", vals)
	}
	count, ttl := vals[0], vals[1]
	if ttl < 0 {
		ttl = window.Milliseconds()
	}

	return &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   time.Now().Add(time.Duration(ttl) * time.Millisecond).Unix(),
	}, nil
}
