package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/questkids-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
	LocalUserName = "user_name"
)

// JWTProtected returns a middleware that validates HS256 tokens issued by the identity provider.
// Browsers cannot set headers on websocket upgrades, so the token may also arrive as ?access_token=.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		if message := authenticate(c, secret, tokenString); message != "" {
			return utils.SendError(c, fiber.StatusUnauthorized, message)
		}
		return c.Next()
	}
}

// JWTOptional authenticates the caller when a token is present and lets anonymous requests through.
func JWTOptional(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" && strings.TrimSpace(c.Query("access_token")) == "" {
			return c.Next()
		}
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		if message := authenticate(c, secret, tokenString); message != "" {
			return utils.SendError(c, fiber.StatusUnauthorized, message)
		}
		return c.Next()
	}
}

// authenticate stores the token claims in locals and returns a rejection message on failure.
func authenticate(c *fiber.Ctx, secret, tokenString string) string {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "invalid token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "invalid token claims"
	}

	userID := extractUserIDFromClaims(claims)
	if userID == "" {
		return "token subject missing"
	}

	c.Locals(LocalUserID, userID)
	if role := extractUserRoleFromClaims(claims); role != "" {
		c.Locals(LocalUserRole, role)
	}
	if name, ok := claims["name"].(string); ok && strings.TrimSpace(name) != "" {
		c.Locals(LocalUserName, strings.TrimSpace(name))
	}
	return ""
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := c.Get("Authorization")
	if authorization == "" {
		if query := strings.TrimSpace(c.Query("access_token")); query != "" {
			return query, nil
		}
		return "", fmt.Errorf("authorization header missing")
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return "", fmt.Errorf("invalid authorization header")
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return "", fmt.Errorf("invalid token")
	}
	return tokenString, nil
}

func extractUserIDFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "user_id", "uid"} {
		if value, ok := claims[key]; ok {
			if normalized := normalizeUserID(value); normalized != "" {
				return normalized
			}
		}
	}
	return ""
}

func normalizeUserID(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return ""
		}
		return strconv.FormatUint(uint64(v), 10)
	default:
		return ""
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				role := strings.ToLower(strings.TrimSpace(str))
				if role != "" {
					return role
				}
			}
		}
	}
	return ""
}
