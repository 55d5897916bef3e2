package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Difficulty grades a quest theme.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty normalises user input into a known difficulty.
func ParseDifficulty(raw string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy":
		return DifficultyEasy, true
	case "medium":
		return DifficultyMedium, true
	case "hard":
		return DifficultyHard, true
	default:
		return "", false
	}
}

// Task types understood by the catalog.
const (
	TaskTypeQuiz     = "quiz"
	TaskTypeActivity = "activity"
	TaskTypeReading  = "reading"
)

// Task is read-only reference data embedded in a theme.
type Task struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CoinReward  int             `json:"coin_reward"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Theme is a quest: an ordered collection of tasks.
type Theme struct {
	ID          string                    `gorm:"primaryKey;size:64" json:"id"`
	Name        string                    `gorm:"size:160;not null" json:"name"`
	Description string                    `gorm:"type:text" json:"description"`
	Difficulty  Difficulty                `gorm:"size:16;index" json:"difficulty"`
	Category    string                    `gorm:"size:64;index" json:"category"`
	Tasks       datatypes.JSONSlice[Task] `gorm:"not null" json:"tasks"`
	IsActive    bool                      `gorm:"index" json:"is_active"`
	OrderKey    int                       `gorm:"index" json:"order_key"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// FindTask returns the task with the given id.
func (t Theme) FindTask(taskID string) (Task, bool) {
	for _, task := range t.Tasks {
		if task.ID == taskID {
			return task, true
		}
	}
	return Task{}, false
}
