package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/common/cache"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const defaultRateLimitTimeout = 200 * time.Millisecond

// RateLimitPolicy bounds requests per client IP and per route within a
// fixed window. A zero max disables that bound.
type RateLimitPolicy struct {
	Window   time.Duration `yaml:"window"`
	IPMax    int           `yaml:"ipMax"`
	RouteMax int           `yaml:"routeMax"`
}

// Enabled reports whether any bound is set.
func (p RateLimitPolicy) Enabled() bool {
	return p.IPMax > 0 || p.RouteMax > 0
}

// RateLimiter enforces fixed-window limits using the shared cache.
type RateLimiter struct {
	cache   cache.Cache
	window  time.Duration
	timeout time.Duration
}

func NewRateLimiter(c cache.Cache, window, timeout time.Duration) *RateLimiter {
	if timeout <= 0 {
		timeout = defaultRateLimitTimeout
	}
	return &RateLimiter{cache: c, window: window, timeout: timeout}
}

// Allow counts one hit on key and fails with TooManyRequests once the
// window holds more than max hits.
func (l *RateLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if l.cache == nil {
		return errors.New(errors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = l.window
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	acquired, err := l.cache.SetNX(ctx, key, 1, window)
	if err != nil {
		return errors.Wrapf(err, errors.CacheError, "rate limit check failed")
	}
	count := int64(1)
	if !acquired {
		count, err = l.cache.Incr(ctx, key)
		if err != nil {
			return errors.Wrapf(err, errors.CacheError, "rate limit check failed")
		}
		// A key left without expiry would block the client forever.
		if ttl, err := l.cache.TTL(ctx, key); err == nil && ttl < 0 {
			_ = l.cache.Expire(ctx, key, window)
		}
	}
	if int(count) > max {
		return errors.New(errors.TooManyRequests).WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
	}
	return nil
}

// RateLimit enforces policy on the routes it is attached to. A nil limiter
// or a disabled policy lets everything through.
func RateLimit(limiter *RateLimiter, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !policy.Enabled() {
			c.Next()
			return
		}
		if policy.IPMax > 0 {
			key := fmt.Sprintf("interfaces:rate:ip:%s:%s", c.ClientIP(), routeKey)
			if err := limiter.Allow(c.Request.Context(), key, policy.IPMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if policy.RouteMax > 0 {
			key := fmt.Sprintf("interfaces:rate:route:%s", routeKey)
			if err := limiter.Allow(c.Request.Context(), key, policy.RouteMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}
