package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

// LeaderboardHandler ranks users.
type LeaderboardHandler struct {
	leaderboard service.LeaderboardService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewLeaderboardHandler constructs a leaderboard handler.
func NewLeaderboardHandler(leaderboard service.LeaderboardService, validate *validator.Validate, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		validator:   validate,
		logger:      logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register wires leaderboard routes.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("/", h.top)
}

func (h *LeaderboardHandler) top(c *fiber.Ctx) error {
	var query dto.LeaderboardQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := h.validator.Struct(query); err != nil {
		return respondError(c, h.logger, err, "failed to load leaderboard")
	}

	entries, err := h.leaderboard.Top(requestContext(c), query.By, query.Limit)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load leaderboard")
	}
	by := query.By
	if by == "" {
		by = service.LeaderboardByCoins
	}
	return utils.OK(c, entries, "leaderboard retrieved", fiber.Map{"by": by, "total": len(entries)})
}
