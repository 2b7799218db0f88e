package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig controls request throttling for a route group.
type RateLimitConfig struct {
	// Requests allowed per window.
	Requests int
	// Window duration.
	Window time.Duration
	// KeyFunc extracts the limit key from the request. Defaults to client IP.
	KeyFunc func(*fiber.Ctx) string
}

// RateLimiter throttles requests using a fixed Redis window, with an
// in-process fallback when no Redis client is configured. Limit checks fail
// open: a backend error lets the request through and is logged.
type RateLimiter struct {
	config RateLimitConfig
	redis  *redis.Client
	logger *zap.Logger

	mu       sync.Mutex
	localMap map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter creates a rate limiter. The redis client may be nil.
func NewRateLimiter(config RateLimitConfig, redisClient *redis.Client, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *fiber.Ctx) string {
			return c.IP()
		}
	}

	return &RateLimiter{
		config:   config,
		redis:    redisClient,
		logger:   logger,
		localMap: make(map[string]*rateLimitEntry),
	}
}

// Middleware returns the fiber handler enforcing the limit.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rl.config.KeyFunc(c)

		allowed, remaining, resetTime, err := rl.checkAndUpdate(c.Context(), key)
		if err != nil {
			rl.logger.Error("rate limit check failed", zap.Error(err), zap.String("key", key))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"retry_after": resetTime.Unix() - time.Now().Unix(),
			})
		}

		return c.Next()
	}
}

func (rl *RateLimiter) checkAndUpdate(ctx context.Context, key string) (bool, int, time.Time, error) {
	if rl.redis != nil {
		return rl.checkAndUpdateRedis(ctx, key)
	}
	return rl.checkAndUpdateLocal(key)
}

func (rl *RateLimiter) checkAndUpdateRedis(ctx context.Context, key string) (bool, int, time.Time, error) {
	redisKey := "ratelimit:" + key

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, time.Time{}, err
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.Window).Err(); err != nil {
			return false, 0, time.Time{}, err
		}
	}

	ttl, err := rl.redis.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = rl.config.Window
	}
	resetTime := time.Now().Add(ttl)

	remaining := rl.config.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return count <= int64(rl.config.Requests), remaining, resetTime, nil
}

func (rl *RateLimiter) checkAndUpdateLocal(key string) (bool, int, time.Time, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, ok := rl.localMap[key]
	if !ok || now.After(entry.resetTime) {
		entry = &rateLimitEntry{resetTime: now.Add(rl.config.Window)}
		rl.localMap[key] = entry
	}

	entry.count++
	remaining := rl.config.Requests - entry.count
	if remaining < 0 {
		remaining = 0
	}

	return entry.count <= rl.config.Requests, remaining, entry.resetTime, nil
}
