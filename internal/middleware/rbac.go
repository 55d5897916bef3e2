package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/questkids-api/internal/utils"
)

// RoleAdmin may seed content and run room cleanup over HTTP.
const RoleAdmin = "admin"

// RequireRole admits callers whose token role matches one of roles, ignoring case and padding.
// It must run after JWTProtected.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = true
		}
	}

	return func(c *fiber.Ctx) error {
		if !allowed[normalizeRole(c.Locals(LocalUserRole))] {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
