package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/questkids-api/internal/utils"
)

// RateLimit throttles a route per player and per room, so a busy chat in one room does not
// mute the player elsewhere. Anonymous callers are keyed by IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: rateLimitKey(identifier),
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "slow down, too many messages")
		},
	})
}

func rateLimitKey(identifier string) func(c *fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		caller, _ := c.Locals(LocalUserID).(string)
		if caller == "" {
			caller = c.IP()
		}
		parts := []string{identifier, caller}
		if roomID := c.Params("id"); roomID != "" {
			parts = append(parts, roomID)
		}
		return strings.Join(parts, ":")
	}
}
