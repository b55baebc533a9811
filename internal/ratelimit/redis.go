package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "pairlimit:"

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local remaining = limit - count - 1
local resetAt = now + window

return {1, remaining, resetAt}
`)

// RedisLimiter is a sliding-window limiter on a shared counter store, exact
// across all service instances. On Redis failure it denies: the pairing
// endpoint fails closed, never open.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Check(ctx context.Context, key string) Decision {
	now := time.Now().Unix()
	fullKey := keyPrefix + key

	result, err := slidingWindowScript.Run(
		ctx, l.client, []string{fullKey},
		now, int64(l.window.Seconds()), l.limit,
	).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, denying request for safety")
		return Decision{Allowed: false, RetryAfter: l.window}
	}

	if len(result) != 3 {
		log.Warn().Str("key", key).Msg("unexpected rate limit result, denying request for safety")
		return Decision{Allowed: false, RetryAfter: l.window}
	}

	if result[0] != 1 {
		retryAfter := time.Until(time.Unix(result[2], 0))
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}

	return Decision{Allowed: true, Remaining: int(result[1])}
}
