package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/middleware"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

type errorStatus struct {
	err    error
	status int
}

var errorStatuses = []errorStatus{
	{service.ErrRoomNotFound, fiber.StatusNotFound},
	{service.ErrThemeNotFound, fiber.StatusNotFound},
	{service.ErrTaskNotFound, fiber.StatusNotFound},
	{service.ErrProfileNotFound, fiber.StatusNotFound},
	{service.ErrSessionNotFound, fiber.StatusNotFound},
	{service.ErrNoChallenge, fiber.StatusNotFound},
	{service.ErrNotParticipant, fiber.StatusForbidden},
	{service.ErrNotChallenged, fiber.StatusForbidden},
	{service.ErrNotChallengeParty, fiber.StatusForbidden},
	{service.ErrRoomInactive, fiber.StatusConflict},
	{service.ErrRoomFull, fiber.StatusConflict},
	{service.ErrRoomBusy, fiber.StatusConflict},
	{service.ErrOpponentRequired, fiber.StatusConflict},
	{service.ErrChallengeInProgress, fiber.StatusConflict},
	{service.ErrInvalidTransition, fiber.StatusConflict},
	{service.ErrTaskAlreadyCompleted, fiber.StatusConflict},
	{service.ErrInvalidOpponent, fiber.StatusBadRequest},
	{service.ErrMessageEmpty, fiber.StatusBadRequest},
	{service.ErrMessageTooLong, fiber.StatusBadRequest},
	{service.ErrSelfFriend, fiber.StatusBadRequest},
	{service.ErrInvalidSeedData, fiber.StatusBadRequest},
	{service.ErrUploadEmpty, fiber.StatusBadRequest},
	{service.ErrUploadTooLarge, fiber.StatusRequestEntityTooLarge},
	{service.ErrUploadTypeNotAllowed, fiber.StatusUnsupportedMediaType},
	{service.ErrUploadUnavailable, fiber.StatusServiceUnavailable},
}

// respondError maps service errors onto the response envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	}

	for _, mapping := range errorStatuses {
		if errors.Is(err, mapping.err) {
			return utils.SendError(c, mapping.status, err.Error())
		}
	}

	requestLogger(logger, c).Error().Err(err).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

func userIDFromContext(c *fiber.Ctx) string {
	if id, ok := c.Locals(middleware.LocalUserID).(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func userNameFromContext(c *fiber.Ctx) string {
	if name, ok := c.Locals(middleware.LocalUserName).(string); ok {
		return name
	}
	return ""
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		logger = middleware.LoggerWithCorrelation(base, c)
	}
	return &logger
}
