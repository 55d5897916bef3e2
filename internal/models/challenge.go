package models

import "time"

// ChallengeStatus tracks a head-to-head challenge inside a room.
type ChallengeStatus string

const (
	ChallengeStatusPending   ChallengeStatus = "pending"
	ChallengeStatusAccepted  ChallengeStatus = "accepted"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusRejected  ChallengeStatus = "rejected"
)

// Challenge is embedded in the room document.
type Challenge struct {
	ID           string          `json:"id"`
	ThemeID      string          `json:"theme_id"`
	TaskID       string          `json:"task_id"`
	TaskTitle    string          `json:"task_title"`
	CoinReward   int             `json:"coin_reward"`
	ChallengerID string          `json:"challenger_id"`
	ChallengedID string          `json:"challenged_id"`
	Status       ChallengeStatus `json:"status"`
	WinnerID     *string         `json:"winner_id"`
	SuggestedAt  time.Time       `json:"suggested_at"`
	RespondedAt  *time.Time      `json:"responded_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// InProgress reports whether the challenge still blocks a new one.
func (c *Challenge) InProgress() bool {
	if c == nil {
		return false
	}
	return c.Status == ChallengeStatusPending || c.Status == ChallengeStatusAccepted
}

// Settled reports whether the challenge reached a terminal state and awaits reset.
func (c *Challenge) Settled() bool {
	if c == nil {
		return false
	}
	return c.Status == ChallengeStatusCompleted || c.Status == ChallengeStatusRejected
}

// Involves reports whether the user is one of the two sides.
func (c *Challenge) Involves(userID string) bool {
	if c == nil {
		return false
	}
	return c.ChallengerID == userID || c.ChallengedID == userID
}
