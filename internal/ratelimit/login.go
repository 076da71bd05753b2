package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/justinhw1987/invoiceflow/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyLoginIP = "login:ip:%s"

// LoginLimiter throttles login attempts per client IP. A nil limiter allows
// every attempt.
type LoginLimiter struct {
	bucket *tokenBucket
}

func NewLoginLimiter(client *redis.Client, cfg config.Config) *LoginLimiter {
	if client == nil {
		return nil
	}
	rate, burst := cfg.LoginLimit.RatePerSecond, cfg.LoginLimit.Burst
	if rate <= 0 || burst <= 0 {
		return nil
	}
	return &LoginLimiter{bucket: newTokenBucket(client, rate, burst)}
}

func (l *LoginLimiter) Allow(ctx context.Context, ip string) (*RateLimitResult, error) {
	if l == nil {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.take(ctx, LoginKey(ip))
}

func LoginKey(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return fmt.Sprintf(keyLoginIP, ip)
}
