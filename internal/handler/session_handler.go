package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

// SessionHandler opens and reads the per-user application state.
type SessionHandler struct {
	sessions  service.SessionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions service.SessionService, validate *validator.Validate, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		validator: validate,
		logger:    logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register wires session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("/", h.open)
	router.Get("/", h.current)
	router.Post("/refresh", h.refresh)
	router.Delete("/", h.close)
}

func (h *SessionHandler) open(c *fiber.Ctx) error {
	state, err := h.sessions.Open(requestContext(c), userIDFromContext(c), userNameFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to open session")
	}
	return utils.Created(c, "session opened", state)
}

// current returns the stored state with its themes narrowed by the query filters.
func (h *SessionHandler) current(c *fiber.Ctx) error {
	var query dto.ThemeListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	query.Normalize()
	if err := h.validator.Struct(query); err != nil {
		return respondError(c, h.logger, err, "failed to load session")
	}

	state, err := h.sessions.Get(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load session")
	}

	state.Themes = service.FilterThemeResponses(state.Themes, service.ParseThemeFilter(query))
	meta := dto.CatalogMeta{Fallback: state.Fallback, Warning: state.Warning, Total: len(state.Themes)}
	return utils.OK(c, state, "session retrieved", meta)
}

func (h *SessionHandler) refresh(c *fiber.Ctx) error {
	state, err := h.sessions.Refresh(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to refresh session")
	}
	return utils.SendSuccess(c, "session refreshed", state)
}

func (h *SessionHandler) close(c *fiber.Ctx) error {
	if err := h.sessions.Close(requestContext(c), userIDFromContext(c)); err != nil {
		return respondError(c, h.logger, err, "failed to close session")
	}
	return utils.SendSuccess(c, "session closed", nil)
}
