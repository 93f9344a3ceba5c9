package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/floorquote/internal/config"
	"golang.org/x/time/rate"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects one event for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// AttemptLimiter throttles verification code attempts per lead.
type AttemptLimiter interface {
	Limiter
}

const (
	verifyPrefix           = "lead:verify:"
	defaultVerifyPerMinute = 1
	defaultVerifyBurst     = 5
)

// VerifyPolicy returns the attempt policy from config, with defaults for
// unset values.
func VerifyPolicy(cfg config.LeadConfig) Policy {
	p := Policy{Prefix: verifyPrefix, PerMinute: cfg.VerifyPerMinute, Burst: cfg.VerifyBurst}
	if p.PerMinute <= 0 {
		p.PerMinute = defaultVerifyPerMinute
	}
	if p.Burst <= 0 {
		p.Burst = defaultVerifyBurst
	}
	return p
}

// Policy is a refill rate expressed as events per minute plus a burst.
type Policy struct {
	Prefix    string
	PerMinute int
	Burst     int
}

func (p Policy) perSecond() float64 {
	if p.PerMinute <= 0 {
		return 1.0 / 60
	}
	return float64(p.PerMinute) / 60
}

func (p Policy) burst() int {
	if p.Burst <= 0 {
		return 1
	}
	return p.Burst
}

func (p Policy) key(key string) string {
	return p.Prefix + strings.TrimSpace(key)
}

type redisLimiter struct {
	bucket *TokenBucket
	policy Policy
}

func NewRedisLimiter(bucket *TokenBucket, policy Policy) Limiter {
	return &redisLimiter{bucket: bucket, policy: policy}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	return l.bucket.Allow(ctx, l.policy.key(key), l.policy.perSecond(), l.policy.burst())
}

// localLimiter keeps one x/time/rate limiter per key in process memory.
type localLimiter struct {
	mu       sync.Mutex
	policy   Policy
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

func NewLocalLimiter(policy Policy) Limiter {
	return &localLimiter{
		policy:   policy,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

func (l *localLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	k := l.policy.key(key)

	l.mu.Lock()
	lim, ok := l.limiters[k]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.policy.perSecond()), l.policy.burst())
		l.limiters[k] = lim
	}
	l.mu.Unlock()

	now := l.now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: int(lim.TokensAt(now))}, nil
}
