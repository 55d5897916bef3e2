package dto

import (
	"time"

	"github.com/noah-isme/questkids-api/internal/models"
)

// UpdateProfileRequest updates the editable profile fields.
type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=2,max=32"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=512"`
}

// AddFriendRequest links another user as a friend.
type AddFriendRequest struct {
	FriendID string `json:"friend_id" validate:"required,max=128"`
}

// CompleteTaskRequest records a solo quest task completion.
type CompleteTaskRequest struct {
	ThemeID string `json:"theme_id" validate:"required,max=64"`
	TaskID  string `json:"task_id" validate:"required,max=64"`
}

// AvatarUploadRequest carries the raw avatar file.
type AvatarUploadRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
}

// ProfileResponse serializes the gamification state of a user.
type ProfileResponse struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Avatar         string    `json:"avatar,omitempty"`
	Coins          int       `json:"coins"`
	Experience     int       `json:"experience"`
	Level          int       `json:"level"`
	LevelProgress  int       `json:"level_progress"`
	CompletedTasks []string  `json:"completed_tasks"`
	Friends        []string  `json:"friends"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TaskCompletionResponse reports a solo completion reward.
type TaskCompletionResponse struct {
	Profile     ProfileResponse `json:"profile"`
	CoinsEarned int             `json:"coins_earned"`
	LeveledUp   bool            `json:"leveled_up"`
}

// LeaderboardQuery selects the ranking dimension.
type LeaderboardQuery struct {
	By    string `query:"by" validate:"omitempty,oneof=coins experience"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Score    int    `json:"score"`
	Level    int    `json:"level"`
}

// NewProfileResponse converts a stored profile.
func NewProfileResponse(profile models.UserProfile) ProfileResponse {
	completed := append([]string{}, profile.CompletedTasks...)
	friends := append([]string{}, profile.Friends...)

	return ProfileResponse{
		UserID:         profile.UserID,
		Username:       profile.DisplayName(),
		Avatar:         profile.Avatar,
		Coins:          profile.Coins,
		Experience:     profile.Experience,
		Level:          models.LevelFor(profile.Experience),
		LevelProgress:  models.LevelProgress(profile.Experience),
		CompletedTasks: completed,
		Friends:        friends,
		UpdatedAt:      profile.UpdatedAt,
	}
}
