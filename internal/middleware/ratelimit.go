package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"

	"planify/internal/cache"
	"planify/internal/models"
	"planify/internal/observability"
)

// MsgTooManyRequests is returned when a client exceeds its allowance.
const MsgTooManyRequests = "Too many requests from this IP, please try again later."

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Resource string
	Max      int
	Window   time.Duration
	Policy   FailPolicy
}

var errNoRedis = errors.New("redis client is nil")

// CheckRateLimit counts one hit for id on resource and reports whether it is
// still within limit, along with the hits recorded in the current window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, int64, error) {
	if rdb == nil {
		return false, 0, errNoRedis
	}

	key := cache.RateLimitKey(resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, cnt, err
		}
	}
	return cnt <= int64(limit), cnt, nil
}

// RateLimit returns a Redis-backed limiter keyed by client IP. When rdb is nil
// it falls back to Fiber's in-process limiter so the allowance still holds on
// a single instance.
func RateLimit(rdb *redis.Client, cfg RateLimitConfig) fiber.Handler {
	if rdb == nil {
		return limiter.New(limiter.Config{
			Max:        cfg.Max,
			Expiration: cfg.Window,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return tooManyRequests(c, cfg)
			},
		})
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		allowed, count, err := CheckRateLimit(ctx, rdb, cfg.Resource, "ip:"+c.IP(), cfg.Max, cfg.Window)
		cancel()

		if err != nil {
			if cfg.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("resource", cfg.Resource), slog.String("error", err.Error()))
				return models.NewServiceUnavailableError(err)
			}
			return c.Next()
		}

		remaining := int64(cfg.Max) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			return tooManyRequests(c, cfg)
		}
		return c.Next()
	}
}

func tooManyRequests(c *fiber.Ctx, cfg RateLimitConfig) error {
	observability.RateLimitRejections.WithLabelValues(cfg.Resource).Inc()
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
	return models.NewTooManyRequestsError(MsgTooManyRequests)
}
