package security

import (
	"context"
	"fmt"
	"time"

	"go-panelworks-backend/pkg/redis"
)

// SubmissionLimiter enforces a per-IP sliding window on contact-form
// submissions. The endpoint is public and unauthenticated, so this is the
// only brake on abuse.
type SubmissionLimiter struct {
	limit  int
	window time.Duration
}

// Lua script for sliding window rate limiting.
// KEYS[1] = rate limit key
// ARGV[1] = max count allowed
// ARGV[2] = window size in seconds
// ARGV[3] = current timestamp
// Returns: 1 if allowed, 0 if rate limited
const slidingWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    return 0
end

redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
redis.call('EXPIRE', key, window)
return 1
`

// NewSubmissionLimiter creates a limiter allowing limit submissions per
// window per client IP.
func NewSubmissionLimiter(limit int, window time.Duration) *SubmissionLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SubmissionLimiter{limit: limit, window: window}
}

// Allow checks whether another submission from ip is permitted. Fails open
// when Redis is unavailable so an infrastructure outage never blocks the
// contact form.
func (sl *SubmissionLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	client := redis.Client()
	if client == nil {
		return true, nil
	}

	key := fmt.Sprintf("ratelimit:contact:ip:%s", ip)
	now := time.Now().Unix()

	result, err := client.Eval(ctx, slidingWindowScript, []string{key}, sl.limit, int(sl.window.Seconds()), now).Result()
	if err != nil {
		// Fail open on Redis errors too, but surface them for logging
		return true, fmt.Errorf("rate limit check failed: %w", err)
	}
	allowed, ok := result.(int64)
	if !ok {
		return true, fmt.Errorf("unexpected result type from rate limit script")
	}
	return allowed == 1, nil
}

// Window returns the configured window, used for Retry-After hints.
func (sl *SubmissionLimiter) Window() time.Duration {
	return sl.window
}
