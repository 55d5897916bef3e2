package dto

import "time"

// SessionState is the explicit per-user application state built when a session opens.
type SessionState struct {
	UserID   string          `json:"user_id"`
	Profile  ProfileResponse `json:"profile"`
	Themes   []ThemeResponse `json:"themes"`
	Fallback bool            `json:"fallback"`
	Warning  string          `json:"warning,omitempty"`
	OpenedAt time.Time       `json:"opened_at"`
}
