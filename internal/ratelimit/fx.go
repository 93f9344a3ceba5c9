package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/floorquote/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const resendPrefix = "lead:resend:"

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewResendLimiter),
	fx.Provide(NewAttemptLimiter),
	fx.Provide(NewLocker),
)

// NewRedisClient returns nil when redis is disabled; consumers fall back to
// in-process implementations.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled || strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Redis.Addr),
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewResendLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) Limiter {
	policy := Policy{
		Prefix:    resendPrefix,
		PerMinute: cfg.Leads.ResendPerMinute,
		Burst:     cfg.Leads.ResendBurst,
	}
	if client == nil {
		log.Named("ratelimit").Info("redis disabled, using in-process resend limiter")
		return NewLocalLimiter(policy)
	}
	return NewRedisLimiter(NewTokenBucket(client), policy)
}

func NewAttemptLimiter(cfg config.Config, client *redis.Client) AttemptLimiter {
	policy := VerifyPolicy(cfg.Leads)
	if client == nil {
		return NewLocalLimiter(policy)
	}
	return NewRedisLimiter(NewTokenBucket(client), policy)
}

func NewLocker(client *redis.Client) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(client)
}
