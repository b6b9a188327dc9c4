// Package security provides the redis backed rate limiting used by the
// read-only operator server.
package security

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// ReportRateLimit throttles the report endpoints per client IP. The counter
// lives in redis so every instance enforces the same budget.
func (r *RateLimiter) ReportRateLimit() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: &redisStore{redis: r.redis, limit: r.limit, window: r.window},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(429, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// redisStore implements middleware.RateLimiterStore with a fixed window
// counter per identifier.
type redisStore struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func (s *redisStore) Allow(identifier string) (bool, error) {
	ctx := context.Background()
	key := fmt.Sprintf("ratelimit:report:%s", identifier)

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		// fail open, the report endpoint is read only
		return true, nil
	}
	if count == 1 {
		s.redis.Expire(ctx, key, s.window)
	}
	return count <= s.limit, nil
}
