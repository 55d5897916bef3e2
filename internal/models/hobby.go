package models

import (
	"time"

	"gorm.io/datatypes"
)

// HobbyTask is a single activity inside a hobby level.
type HobbyTask struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// HobbyLevel groups tasks of comparable difficulty.
type HobbyLevel struct {
	Number int         `json:"number"`
	Title  string      `json:"title"`
	Tasks  []HobbyTask `json:"tasks"`
}

// Hobby is a skill-building activity track for one age bracket.
type Hobby struct {
	ID          string                          `gorm:"primaryKey;size:128" json:"id"`
	Name        string                          `gorm:"size:120;not null" json:"name"`
	Category    string                          `gorm:"size:64;index" json:"category"`
	Icon        string                          `gorm:"size:32" json:"icon"`
	AgeBracket  string                          `gorm:"size:16;index" json:"age_bracket"`
	Description string                          `gorm:"type:text" json:"description"`
	Levels      datatypes.JSONSlice[HobbyLevel] `gorm:"not null" json:"levels"`
	CreatedAt   time.Time                       `json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`
}

// TaskCount returns the number of tasks across all levels.
func (h Hobby) TaskCount() int {
	total := 0
	for _, level := range h.Levels {
		total += len(level.Tasks)
	}
	return total
}
