package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// rateWindow increments the counter and arms its expiry in one round trip.
// A counter left without a TTL is re-armed instead of blocking forever.
var rateWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RateLimit caps requests per authenticated user per minute using a Redis
// counter under prefix. It falls back to the client IP for anonymous callers
// and fails open when Redis is unavailable.
func RateLimit(cache *redis.Client, prefix string, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		subject, _ := c.Locals("user_id").(string)
		if subject == "" {
			subject = c.IP()
		}
		key := "rl:" + prefix + ":" + subject
		res, err := rateWindow.Run(c.UserContext(), cache, []string{key}, time.Minute.Milliseconds()).Int64Slice()
		if err != nil || len(res) != 2 {
			logger.Warn("rate limit unavailable", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}
		cnt, ttl := res[0], time.Duration(res[1])*time.Millisecond
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, formatSeconds(ttl))
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
