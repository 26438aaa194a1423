/**
 * @description
 * This file implements a fixed-window rate limiter on Redis, used to
 * throttle PIN verification attempts per card across all instances of the
 * service.
 *
 * Key features:
 * - Single Lua script does INCR + PEXPIRE atomically, so the window TTL is
 *   set exactly once per window.
 * - Returns the attempt count and the remaining window so callers can shape
 *   a Retry-After response.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client and script evaluation.
 */

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript increments the window counter and attaches the TTL on the
// first hit. Returns {count, ttl_ms}.
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisAuthRateLimiter implements AuthRateLimiter on a shared Redis.
type RedisAuthRateLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisAuthRateLimiter creates a limiter namespaced under keyPrefix.
func NewRedisAuthRateLimiter(client *redis.Client, keyPrefix string) *RedisAuthRateLimiter {
	prefix := strings.TrimSuffix(keyPrefix, ":")
	if prefix == "" {
		prefix = "atm:rate_limit"
	}
	return &RedisAuthRateLimiter{client: client, keyPrefix: prefix}
}

// ConsumeRateLimit counts one attempt for scope/subject in the current
// window and reports the running total along with the seconds left until
// the window resets.
func (l *RedisAuthRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	key := fmt.Sprintf("%s:%s:%s", l.keyPrefix, scope, subject)

	result, err := rateLimitScript.Run(ctx, l.client, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(result) != 2 {
		return 0, 0, fmt.Errorf("rate limit script: unexpected reply %v", result)
	}

	count, ok := result[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("rate limit script: unexpected count %T", result[0])
	}
	ttlMillis, ok := result[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("rate limit script: unexpected ttl %T", result[1])
	}

	retryAfter := int((time.Duration(ttlMillis) * time.Millisecond).Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(count), retryAfter, nil
}
