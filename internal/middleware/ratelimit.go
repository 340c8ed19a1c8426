package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"time"

	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis is unreachable.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	FailClosed
)

// Environments where rate limits are not enforced.
var unlimitedEnvs = []string{"test", "development", "stress"}

func limitsDisabled() bool {
	env := os.Getenv("APP_ENV")
	return env == "" || slices.Contains(unlimitedEnvs, env)
}

func rateLimitKey(resource, id string) string {
	return "rl:" + resource + ":" + id
}

// CheckRateLimit counts one hit for resource/id in a fixed window and reports
// whether the caller is still within limit. The window starts at the first hit.
// Nothing is counted when APP_ENV is unset, test, development or stress.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if limitsDisabled() {
		return true, nil
	}
	if rdb == nil {
		return false, errors.New("rate limit: redis client is nil")
	}

	key := rateLimitKey(resource, id)
	hits, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if hits == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return hits <= int64(limit), nil
}

// RateLimit enforces limit requests per window, keyed by user id when
// authenticated and by client IP otherwise. Redis outages let requests through.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy. Rejected
// requests get a Retry-After header with the seconds left in the window.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}
		id := "ip:" + c.IP()
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		}

		ctx := c.UserContext()
		allowed, err := CheckRateLimit(ctx, rdb, resource, id, limit, window)
		switch {
		case err != nil && policy == FailClosed:
			Logger.WarnContext(ctx, "rate limit store unavailable", "resource", resource, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "rate limit unavailable",
				Code:  models.CodeInternal,
			})
		case err != nil, allowed:
			return c.Next()
		}

		if ttl, err := rdb.TTL(ctx, rateLimitKey(resource, id)).Result(); err == nil && ttl > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
		}
		return models.Respond(c, &models.AppError{
			Code:    models.CodeRateLimited,
			Message: "rate limit exceeded",
		})
	}
}
