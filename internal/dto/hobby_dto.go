package dto

import "github.com/noah-isme/questkids-api/internal/models"

// HobbyListQuery filters generated hobby tracks.
type HobbyListQuery struct {
	AgeBracket string `query:"age_bracket" validate:"omitempty,oneof=4-6 7-9 10-12"`
}

// HobbyResponse serializes a hobby with its levels.
type HobbyResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	Icon        string              `json:"icon"`
	AgeBracket  string              `json:"age_bracket"`
	Description string              `json:"description"`
	TaskCount   int                 `json:"task_count"`
	Levels      []models.HobbyLevel `json:"levels"`
}

// NewHobbyResponseSlice converts stored hobbies.
func NewHobbyResponseSlice(hobbies []models.Hobby) []HobbyResponse {
	responses := make([]HobbyResponse, 0, len(hobbies))
	for _, hobby := range hobbies {
		responses = append(responses, HobbyResponse{
			ID:          hobby.ID,
			Name:        hobby.Name,
			Category:    hobby.Category,
			Icon:        hobby.Icon,
			AgeBracket:  hobby.AgeBracket,
			Description: hobby.Description,
			TaskCount:   hobby.TaskCount(),
			Levels:      append([]models.HobbyLevel{}, hobby.Levels...),
		})
	}
	return responses
}

// SeedSummary reports what a seed run stored.
type SeedSummary struct {
	Seed    int64 `json:"seed"`
	Themes  int   `json:"themes"`
	Hobbies int   `json:"hobbies"`
	Tasks   int   `json:"tasks"`
}
