package dto

import (
	"time"

	"github.com/noah-isme/questkids-api/internal/models"
)

// CreateRoomRequest opens a new challenge room.
type CreateRoomRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=120"`
	MaxPlayers int    `json:"max_players" validate:"omitempty,min=2,max=12"`
}

// SendMessageRequest posts a chat line into a room.
type SendMessageRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// CreateChallengeRequest suggests a task to another participant.
type CreateChallengeRequest struct {
	ThemeID      string `json:"theme_id" validate:"required,max=64"`
	TaskID       string `json:"task_id" validate:"required,max=64"`
	ChallengedID string `json:"challenged_id" validate:"omitempty,max=128"`
}

// ParticipantResponse serializes a room member.
type ParticipantResponse struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar,omitempty"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// MessageResponse serializes a chat line.
type MessageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Text       string    `json:"text"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChallengeResponse serializes the current head-to-head challenge.
type ChallengeResponse struct {
	ID           string     `json:"id"`
	ThemeID      string     `json:"theme_id"`
	TaskID       string     `json:"task_id"`
	TaskTitle    string     `json:"task_title"`
	CoinReward   int        `json:"coin_reward"`
	ChallengerID string     `json:"challenger_id"`
	ChallengedID string     `json:"challenged_id"`
	Status       string     `json:"status"`
	WinnerID     *string    `json:"winner_id"`
	SuggestedAt  time.Time  `json:"suggested_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RoomResponse is the full room snapshot sent to clients.
type RoomResponse struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	IsActive         bool                  `json:"is_active"`
	Status           string                `json:"status"`
	Participants     []ParticipantResponse `json:"participants"`
	Messages         []MessageResponse     `json:"messages"`
	CurrentChallenge *ChallengeResponse    `json:"current_challenge"`
	CurrentPlayers   int                   `json:"current_players"`
	MaxPlayers       int                   `json:"max_players"`
	CreatedBy        string                `json:"created_by"`
	Version          int64                 `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// RoomSummaryResponse is the lightweight representation used in room lists.
type RoomSummaryResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CurrentPlayers int       `json:"current_players"`
	MaxPlayers     int       `json:"max_players"`
	HasChallenge   bool      `json:"has_challenge"`
	CreatedAt      time.Time `json:"created_at"`
}

// RoomEvent is pushed to live subscribers.
type RoomEvent struct {
	Type   string        `json:"type"`
	RoomID string        `json:"room_id"`
	Room   *RoomResponse `json:"room,omitempty"`
	SentAt time.Time     `json:"sent_at"`
}

// Room event types.
const (
	RoomEventUpdated = "room_updated"
	RoomEventDeleted = "room_deleted"
)

// NewRoomResponse converts a room document into its snapshot representation.
func NewRoomResponse(room models.Room) RoomResponse {
	participants := make([]ParticipantResponse, 0, len(room.Participants))
	for _, participant := range room.Participants {
		participants = append(participants, ParticipantResponse(participant))
	}

	messages := make([]MessageResponse, 0, len(room.Messages))
	for _, message := range room.Messages {
		messages = append(messages, MessageResponse(message))
	}

	return RoomResponse{
		ID:               room.ID,
		Name:             room.Name,
		IsActive:         room.IsActive,
		Status:           string(room.Status),
		Participants:     participants,
		Messages:         messages,
		CurrentChallenge: NewChallengeResponse(room.Challenge()),
		CurrentPlayers:   len(room.Participants),
		MaxPlayers:       room.MaxPlayers,
		CreatedBy:        room.CreatedBy,
		Version:          room.Version,
		CreatedAt:        room.CreatedAt,
		UpdatedAt:        room.UpdatedAt,
	}
}

// NewChallengeResponse converts the embedded challenge; nil stays nil.
func NewChallengeResponse(challenge *models.Challenge) *ChallengeResponse {
	if challenge == nil {
		return nil
	}
	return &ChallengeResponse{
		ID:           challenge.ID,
		ThemeID:      challenge.ThemeID,
		TaskID:       challenge.TaskID,
		TaskTitle:    challenge.TaskTitle,
		CoinReward:   challenge.CoinReward,
		ChallengerID: challenge.ChallengerID,
		ChallengedID: challenge.ChallengedID,
		Status:       string(challenge.Status),
		WinnerID:     challenge.WinnerID,
		SuggestedAt:  challenge.SuggestedAt,
		RespondedAt:  challenge.RespondedAt,
		CompletedAt:  challenge.CompletedAt,
	}
}

// NewRoomSummaryResponseSlice converts rooms for list endpoints.
func NewRoomSummaryResponseSlice(rooms []models.Room) []RoomSummaryResponse {
	responses := make([]RoomSummaryResponse, 0, len(rooms))
	for _, room := range rooms {
		responses = append(responses, RoomSummaryResponse{
			ID:             room.ID,
			Name:           room.Name,
			CurrentPlayers: len(room.Participants),
			MaxPlayers:     room.MaxPlayers,
			HasChallenge:   room.Challenge() != nil,
			CreatedAt:      room.CreatedAt,
		})
	}
	return responses
}

// CleanupResponse reports the outcome of a garbage-collection run.
type CleanupResponse struct {
	Mode    string `json:"mode"`
	Deleted int    `json:"deleted"`
}
