package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

// SeedHandler exposes catalog seeding to administrators.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/", h.seed)
}

func (h *SeedHandler) seed(c *fiber.Ctx) error {
	var seed int64
	if raw := strings.TrimSpace(c.Query("seed")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "seed must be an integer")
		}
		seed = parsed
	}

	summary, err := h.service.Seed(requestContext(c), seed)
	if err != nil {
		return respondError(c, h.logger, err, "seed operation failed")
	}

	requestLogger(h.logger, c).Info().Int64("seed", summary.Seed).Int("hobbies", summary.Hobbies).Msg("catalog seeded")
	return utils.SendSuccess(c, "catalog seeded", summary)
}
