package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

// ProfileHandler serves the caller's profile and solo quest progress.
type ProfileHandler struct {
	profiles service.ProfileService
	logger   zerolog.Logger
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(profiles service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register wires profile routes.
func (h *ProfileHandler) Register(router fiber.Router) {
	router.Get("/", h.me)
	router.Patch("/", h.update)
	router.Post("/friends", h.addFriend)
	router.Post("/tasks/complete", h.completeTask)
	router.Post("/avatar", h.uploadAvatar)
}

func (h *ProfileHandler) me(c *fiber.Ctx) error {
	profile, err := h.profiles.EnsureProfile(requestContext(c), userIDFromContext(c), userNameFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load profile")
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *ProfileHandler) update(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	profile, err := h.profiles.UpdateProfile(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update profile")
	}
	return utils.SendSuccess(c, "profile updated", profile)
}

func (h *ProfileHandler) addFriend(c *fiber.Ctx) error {
	var req dto.AddFriendRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	profile, err := h.profiles.AddFriend(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to add friend")
	}
	return utils.SendSuccess(c, "friend added", profile)
}

func (h *ProfileHandler) completeTask(c *fiber.Ctx) error {
	var req dto.CompleteTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.profiles.CompleteQuestTask(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to complete task")
	}
	return utils.SendSuccess(c, "task completed", result)
}

func (h *ProfileHandler) uploadAvatar(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrUploadEmpty.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}

	profile, err := h.profiles.UploadAvatar(requestContext(c), userIDFromContext(c), dto.AvatarUploadRequest{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Data:        data,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to upload avatar")
	}
	return utils.SendSuccess(c, "avatar updated", profile)
}
