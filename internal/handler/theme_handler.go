package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

// ThemeHandler serves the quest catalog.
type ThemeHandler struct {
	catalog   service.CatalogService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewThemeHandler constructs a theme handler.
func NewThemeHandler(catalog service.CatalogService, validate *validator.Validate, logger zerolog.Logger) *ThemeHandler {
	return &ThemeHandler{
		catalog:   catalog,
		validator: validate,
		logger:    logger.With().Str("component", "theme_handler").Logger(),
	}
}

// Register wires theme routes.
func (h *ThemeHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:id", h.detail)
}

func (h *ThemeHandler) list(c *fiber.Ctx) error {
	var query dto.ThemeListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	query.Normalize()
	if err := h.validator.Struct(query); err != nil {
		return respondError(c, h.logger, err, "failed to load themes")
	}

	result, err := h.catalog.Themes(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load themes")
	}

	themes := service.FilterThemes(result.Themes, service.ParseThemeFilter(query))
	meta := dto.CatalogMeta{Fallback: result.Fallback, Warning: result.Warning, Total: len(themes)}
	return utils.OK(c, dto.NewThemeResponseSlice(themes), "themes retrieved", meta)
}

func (h *ThemeHandler) detail(c *fiber.Ctx) error {
	theme, err := h.catalog.Theme(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load theme")
	}
	return utils.SendSuccess(c, "theme retrieved", dto.NewThemeResponse(theme))
}
