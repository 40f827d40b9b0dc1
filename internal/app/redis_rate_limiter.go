package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultLoginLimitPrefix = "upbank:rate_limit"

// One counter per username. The first attempt in a window arms the expiry; the script
// answers with the attempt count and the milliseconds left in the window.
var loginAttemptScript = redis.NewScript(`
local attempts = redis.call("INCR", KEYS[1])
if attempts == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {attempts, ttl}
`)

// LoginWindow is a username's attempt count in the current window after one more attempt
// was counted.
type LoginWindow struct {
	Attempts int
	// RetryAfterSeconds is the whole number of seconds until the window resets, never less
	// than one. It is sent back verbatim in the Retry-After header of a 429.
	RetryAfterSeconds int
}

// Exceeded reports whether the attempt just counted went over limit.
func (w LoginWindow) Exceeded(limit int) bool {
	return limit > 0 && w.Attempts > limit
}

// RedisLoginLimiter counts login attempts per username in Redis, so every replica behind
// the load balancer shares the same window.
type RedisLoginLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLoginLimiter(client redis.UniversalClient, prefix string) *RedisLoginLimiter {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = defaultLoginLimitPrefix
	}
	return &RedisLoginLimiter{client: client, prefix: trimmedPrefix}
}

// loginKey folds case and padding the same way username lookups do, so " Ana " and "ana"
// spend one budget.
func (r *RedisLoginLimiter) loginKey(username string) string {
	return fmt.Sprintf("%s:login:%s", r.prefix, strings.ToLower(strings.TrimSpace(username)))
}

// CountLoginAttempt records one attempt for username. Without a client, or for a blank
// username, it records nothing and returns a zero window.
func (r *RedisLoginLimiter) CountLoginAttempt(ctx context.Context, username string, window time.Duration) (LoginWindow, error) {
	if r == nil || r.client == nil || window <= 0 || strings.TrimSpace(username) == "" {
		return LoginWindow{}, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	raw, err := loginAttemptScript.Run(ctx, r.client, []string{r.loginKey(username)}, windowMs).Result()
	if err != nil {
		return LoginWindow{}, err
	}
	return parseLoginWindow(raw, windowMs)
}

func parseLoginWindow(raw interface{}, windowMs int64) (LoginWindow, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return LoginWindow{}, fmt.Errorf("unexpected login limiter response shape: %T", raw)
	}
	attempts, ok := values[0].(int64)
	if !ok {
		return LoginWindow{}, fmt.Errorf("unexpected login limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	// Round up: a client that waits the advertised seconds must land in a fresh window.
	retryAfter := int((ttlMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return LoginWindow{Attempts: int(attempts), RetryAfterSeconds: retryAfter}, nil
}

// ParseRedisClient builds a client from a redis:// URL.
func ParseRedisClient(redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(options), nil
}
