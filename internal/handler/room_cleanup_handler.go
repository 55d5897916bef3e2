package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

// RoomCleanupHandler lets administrators trigger room garbage collection.
type RoomCleanupHandler struct {
	cleanup service.RoomCleanupService
	logger  zerolog.Logger
}

// NewRoomCleanupHandler constructs a cleanup handler.
func NewRoomCleanupHandler(cleanup service.RoomCleanupService, logger zerolog.Logger) *RoomCleanupHandler {
	return &RoomCleanupHandler{
		cleanup: cleanup,
		logger:  logger.With().Str("component", "room_cleanup_handler").Logger(),
	}
}

// Register wires cleanup routes.
func (h *RoomCleanupHandler) Register(router fiber.Router) {
	router.Post("/cleanup", h.run)
}

// run deletes stale rooms, or every room older than older_than_hours when it is given.
func (h *RoomCleanupHandler) run(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("older_than_hours"))
	if raw == "" {
		deleted, err := h.cleanup.CleanupStale(requestContext(c))
		if err != nil {
			return respondError(c, h.logger, err, "room cleanup failed")
		}
		return utils.SendSuccess(c, "stale rooms deleted", dto.CleanupResponse{Mode: service.CleanupModeStale, Deleted: deleted})
	}

	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "older_than_hours must be a positive integer")
	}
	deleted, err := h.cleanup.CleanupOlderThan(requestContext(c), hours)
	if err != nil {
		return respondError(c, h.logger, err, "room cleanup failed")
	}
	return utils.SendSuccess(c, "old rooms deleted", dto.CleanupResponse{Mode: service.CleanupModeOldOnly, Deleted: deleted})
}
