package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

// HobbyHandler lists generated hobby tracks.
type HobbyHandler struct {
	service service.HobbyService
	logger  zerolog.Logger
}

// NewHobbyHandler constructs a hobby handler.
func NewHobbyHandler(service service.HobbyService, logger zerolog.Logger) *HobbyHandler {
	return &HobbyHandler{
		service: service,
		logger:  logger.With().Str("component", "hobby_handler").Logger(),
	}
}

// Register wires hobby routes.
func (h *HobbyHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *HobbyHandler) list(c *fiber.Ctx) error {
	var query dto.HobbyListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	hobbies, err := h.service.List(requestContext(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load hobbies")
	}
	return utils.OK(c, hobbies, "hobbies retrieved", fiber.Map{"total": len(hobbies)})
}
