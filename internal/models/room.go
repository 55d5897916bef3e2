package models

import (
	"time"

	"gorm.io/datatypes"
)

// RoomStatus describes the lifecycle state of a challenge room.
type RoomStatus string

const (
	RoomStatusActive    RoomStatus = "active"
	RoomStatusCompleted RoomStatus = "completed"
)

// SystemSenderID marks chat messages authored by the room itself.
const SystemSenderID = "system"

// Message types stored in the room chat log.
const (
	MessageTypeUser   = "user"
	MessageTypeSystem = "system"
)

// Participant is a member of a room as stored inside the room document.
type Participant struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// RoomMessage is a single entry of the append-only room chat.
type RoomMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Text       string    `json:"text"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// Room is the shared document every participant of a challenge room observes.
// Participants, messages and the current challenge live in JSON columns so the
// room is read and written as one unit; Version guards concurrent writers.
type Room struct {
	ID               string                           `gorm:"primaryKey;size:64" json:"id"`
	Name             string                           `gorm:"size:120" json:"name"`
	IsActive         bool                             `gorm:"index" json:"is_active"`
	Status           RoomStatus                       `gorm:"size:16;index" json:"status"`
	Participants     datatypes.JSONSlice[Participant] `gorm:"not null" json:"participants"`
	Messages         datatypes.JSONSlice[RoomMessage] `gorm:"not null" json:"messages"`
	CurrentChallenge datatypes.JSONType[*Challenge]   `gorm:"not null" json:"current_challenge"`
	CurrentPlayers   int                              `json:"current_players"`
	MaxPlayers       int                              `json:"max_players"`
	CreatedBy        string                           `gorm:"size:128" json:"created_by"`
	Version          int64                            `gorm:"not null" json:"version"`
	CreatedAt        time.Time                        `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time                        `json:"updated_at"`
}

// Challenge returns the embedded challenge, or nil when none is set.
func (r *Room) Challenge() *Challenge {
	return r.CurrentChallenge.Data()
}

// SetChallenge replaces the embedded challenge; nil clears it.
func (r *Room) SetChallenge(challenge *Challenge) {
	r.CurrentChallenge = datatypes.NewJSONType(challenge)
}

// ParticipantIndex returns the index of the user in the participant list, or -1.
func (r *Room) ParticipantIndex(userID string) int {
	for i, participant := range r.Participants {
		if participant.UserID == userID {
			return i
		}
	}
	return -1
}

// HasParticipant reports whether the user is currently in the room.
func (r *Room) HasParticipant(userID string) bool {
	return r.ParticipantIndex(userID) >= 0
}

// IsFull reports whether no more participants may join.
func (r *Room) IsFull() bool {
	return r.MaxPlayers > 0 && len(r.Participants) >= r.MaxPlayers
}

// IsStale reports whether the room qualifies for garbage collection at the given instant.
func (r *Room) IsStale(now time.Time, maxAge time.Duration) bool {
	if !r.IsActive || len(r.Participants) == 0 || r.Status == RoomStatusCompleted {
		return true
	}
	return r.CreatedAt.Before(now.Add(-maxAge))
}

// Normalize makes sure JSON columns never hold SQL NULL and counters match the participant list.
func (r *Room) Normalize() {
	if r.Participants == nil {
		r.Participants = datatypes.JSONSlice[Participant]{}
	}
	if r.Messages == nil {
		r.Messages = datatypes.JSONSlice[RoomMessage]{}
	}
	r.CurrentPlayers = len(r.Participants)
}
