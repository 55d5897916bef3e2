package dto

import (
	"strings"

	"github.com/noah-isme/questkids-api/internal/models"
)

// ThemeListQuery captures the optional catalog filters.
type ThemeListQuery struct {
	Category   string `query:"category" validate:"omitempty,max=64"`
	Difficulty string `query:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Search     string `query:"search" validate:"omitempty,max=120"`
}

// Normalize trims the filters and lowercases the difficulty so any casing validates.
func (q *ThemeListQuery) Normalize() {
	q.Category = strings.TrimSpace(q.Category)
	q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
	q.Search = strings.TrimSpace(q.Search)
}

// TaskResponse serializes a quest task.
type TaskResponse struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	CoinReward  int         `json:"coin_reward"`
	Type        string      `json:"type"`
	Payload     interface{} `json:"payload,omitempty"`
}

// ThemeResponse serializes a quest theme with its tasks.
type ThemeResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Difficulty  string         `json:"difficulty"`
	Category    string         `json:"category"`
	Tasks       []TaskResponse `json:"tasks"`
}

// CatalogMeta describes where a theme list came from.
type CatalogMeta struct {
	Fallback bool   `json:"fallback"`
	Warning  string `json:"warning,omitempty"`
	Total    int    `json:"total"`
}

// NewThemeResponse converts a theme into its API representation.
func NewThemeResponse(theme models.Theme) ThemeResponse {
	tasks := make([]TaskResponse, 0, len(theme.Tasks))
	for _, task := range theme.Tasks {
		tasks = append(tasks, NewTaskResponse(task))
	}

	return ThemeResponse{
		ID:          theme.ID,
		Name:        theme.Name,
		Description: theme.Description,
		Difficulty:  string(theme.Difficulty),
		Category:    theme.Category,
		Tasks:       tasks,
	}
}

// NewThemeResponseSlice converts a list of themes.
func NewThemeResponseSlice(themes []models.Theme) []ThemeResponse {
	responses := make([]ThemeResponse, 0, len(themes))
	for _, theme := range themes {
		responses = append(responses, NewThemeResponse(theme))
	}
	return responses
}

// NewTaskResponse converts a task, exposing its structured payload as raw JSON.
func NewTaskResponse(task models.Task) TaskResponse {
	response := TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		CoinReward:  task.CoinReward,
		Type:        task.Type,
	}
	if len(task.Payload) > 0 {
		response.Payload = task.Payload
	}
	return response
}
