package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/questkids-api/internal/config"
	"github.com/noah-isme/questkids-api/internal/handler"
	"github.com/noah-isme/questkids-api/internal/middleware"
	"github.com/noah-isme/questkids-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ThemeHandler       *handler.ThemeHandler
	HobbyHandler       *handler.HobbyHandler
	RoomHandler        *handler.RoomHandler
	ProfileHandler     *handler.ProfileHandler
	LeaderboardHandler *handler.LeaderboardHandler
	SessionHandler     *handler.SessionHandler
	SeedHandler        *handler.SeedHandler
	RoomCleanupHandler *handler.RoomCleanupHandler
	HealthProbes       []handler.HealthProbe
	JWTMiddleware      fiber.Handler
	OptionalJWT        fiber.Handler
	MessageRateLimit   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v2", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	optionalJWT := deps.OptionalJWT
	if optionalJWT == nil {
		optionalJWT = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Catalog falls back to sample quests for anonymous callers
	if deps.ThemeHandler != nil {
		deps.ThemeHandler.Register(api.Group("/themes", optionalJWT))
	}
	if deps.HobbyHandler != nil {
		deps.HobbyHandler.Register(api.Group("/hobbies"))
	}
	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(api.Group("/leaderboard"))
	}

	if deps.RoomHandler != nil {
		deps.RoomHandler.Register(api.Group("/rooms", jwtMiddleware), deps.MessageRateLimit)
	}
	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(api.Group("/profile", jwtMiddleware))
	}
	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/session", jwtMiddleware))
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin))
	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(admin.Group("/seed"))
	}
	if deps.RoomCleanupHandler != nil {
		deps.RoomCleanupHandler.Register(admin.Group("/rooms"))
	}
}
