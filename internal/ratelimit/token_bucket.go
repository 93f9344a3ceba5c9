package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Refills at ARGV[1] tokens per second up to ARGV[2]. Returns whether the
// call was admitted, the whole tokens left and the wait in milliseconds
// until the next token.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now

local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * rate / 1000)

local admitted = 0
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
  admitted = 1
else
  wait = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], math.ceil(capacity * 2000 / rate))

return {admitted, math.floor(tokens), wait}
`

var errInvalidBucket = errors.New("invalid_token_bucket")

// TokenBucket is a Redis token bucket shared by every API replica.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, perSecond float64, capacity int) (Decision, error) {
	switch {
	case t == nil || t.client == nil:
		return Decision{}, fmt.Errorf("%w: no redis client", errInvalidBucket)
	case key == "":
		return Decision{}, fmt.Errorf("%w: empty key", errInvalidBucket)
	case perSecond <= 0 || capacity <= 0:
		return Decision{}, fmt.Errorf("%w: rate %v capacity %d", errInvalidBucket, perSecond, capacity)
	}

	res, err := t.script.Run(ctx, t.client, []string{key}, perSecond, capacity).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	return decodeBucketReply(res)
}

func decodeBucketReply(res []int64) (Decision, error) {
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("%w: reply has %d values", errInvalidBucket, len(res))
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
