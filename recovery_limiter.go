package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var errRecoveryThrottled = errors.New("recovery throttled")

// recoveryLimiter applies fixed-window throttles to recovery requests and
// code checks, keyed by email and by client IP.
type recoveryLimiter struct {
	redis  *redis.Client
	config RecoveryConfig
}

func newRecoveryLimiter(redisClient *redis.Client, cfg RecoveryConfig) *recoveryLimiter {
	return &recoveryLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *recoveryLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableEmailThrottle {
		if err := l.enforceFixedWindow(ctx, recoveryRequestEmailKey(email), l.config.MaxRequests); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, recoveryRequestIPKey(ip), l.config.MaxRequests); err != nil {
			return err
		}
	}
	return nil
}

func (l *recoveryLimiter) CheckVerify(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableEmailThrottle {
		if err := l.enforceFixedWindow(ctx, recoveryVerifyEmailKey(email), l.config.MaxVerifyAttempts); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, recoveryVerifyIPKey(ip), l.config.MaxVerifyAttempts); err != nil {
			return err
		}
	}
	return nil
}

func (l *recoveryLimiter) enforceFixedWindow(ctx context.Context, key string, limit int) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errRecoveryRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.ThrottleWindow).Err(); err != nil {
			return fmt.Errorf("%w: %v", errRecoveryRedisUnavailable, err)
		}
	}

	if count > int64(limit) {
		return errRecoveryThrottled
	}

	return nil
}

func recoveryRequestEmailKey(email string) string {
	return "agrq:" + email
}

func recoveryRequestIPKey(ip string) string {
	return "agrqip:" + ip
}

func recoveryVerifyEmailKey(email string) string {
	return "agrv:" + email
}

func recoveryVerifyIPKey(ip string) string {
	return "agrvip:" + ip
}
