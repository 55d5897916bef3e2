package content

import (
	"encoding/json"

	"github.com/noah-isme/questkids-api/internal/models"
)

// SampleThemes returns the built-in quest catalog shown when stored themes are unavailable.
// Every call returns a fresh copy.
func SampleThemes() []models.Theme {
	return []models.Theme{
		{
			ID:          "space-explorers",
			Name:        "Space Explorers",
			Description: "Blast off and learn about planets, stars and astronauts.",
			Difficulty:  models.DifficultyEasy,
			Category:    "science",
			IsActive:    true,
			OrderKey:    1,
			Tasks: []models.Task{
				quizTask("space-1", "Planet Count", "How many planets orbit our Sun?", 10,
					[]string{"Seven", "Eight", "Nine"}, 1),
				{ID: "space-2", Title: "Build a Rocket", Description: "Make a rocket from a paper roll and tape.", CoinReward: 15, Type: models.TaskTypeActivity},
				{ID: "space-3", Title: "Moon Story", Description: "Read a short story about the first moon landing.", CoinReward: 10, Type: models.TaskTypeReading},
			},
		},
		{
			ID:          "ocean-adventures",
			Name:        "Ocean Adventures",
			Description: "Dive deep to meet whales, coral reefs and sea turtles.",
			Difficulty:  models.DifficultyEasy,
			Category:    "nature",
			IsActive:    true,
			OrderKey:    2,
			Tasks: []models.Task{
				quizTask("ocean-1", "Biggest Animal", "Which animal is the largest on Earth?", 10,
					[]string{"Blue whale", "Elephant", "Great white shark"}, 0),
				{ID: "ocean-2", Title: "Draw a Reef", Description: "Draw a coral reef with five different sea creatures.", CoinReward: 15, Type: models.TaskTypeActivity},
			},
		},
		{
			ID:          "math-magic",
			Name:        "Math Magic",
			Description: "Solve number puzzles and discover patterns.",
			Difficulty:  models.DifficultyMedium,
			Category:    "math",
			IsActive:    true,
			OrderKey:    3,
			Tasks: []models.Task{
				quizTask("math-1", "Missing Number", "What comes next: 2, 4, 8, 16, ...?", 20,
					[]string{"18", "24", "32"}, 2),
				quizTask("math-2", "Shape Sides", "How many sides does a hexagon have?", 15,
					[]string{"Five", "Six", "Eight"}, 1),
				{ID: "math-3", Title: "Kitchen Fractions", Description: "Help measure half a cup and a quarter cup of water.", CoinReward: 20, Type: models.TaskTypeActivity},
			},
		},
		{
			ID:          "word-wizards",
			Name:        "Word Wizards",
			Description: "Spell, rhyme and invent stories with magical words.",
			Difficulty:  models.DifficultyMedium,
			Category:    "language",
			IsActive:    true,
			OrderKey:    4,
			Tasks: []models.Task{
				quizTask("word-1", "Rhyme Time", "Which word rhymes with cat?", 10,
					[]string{"Hat", "Dog", "Cup"}, 0),
				{ID: "word-2", Title: "Tiny Tale", Description: "Write a story in exactly five sentences.", CoinReward: 25, Type: models.TaskTypeActivity},
			},
		},
		{
			ID:          "code-quest",
			Name:        "Code Quest",
			Description: "Give instructions to robots and fix buggy sequences.",
			Difficulty:  models.DifficultyHard,
			Category:    "technology",
			IsActive:    true,
			OrderKey:    5,
			Tasks: []models.Task{
				quizTask("code-1", "Robot Steps", "A robot faces north and turns right twice. Where does it face?", 30,
					[]string{"East", "South", "West"}, 1),
				{ID: "code-2", Title: "Dance Algorithm", Description: "Write down the steps of your favourite dance and teach it to someone.", CoinReward: 30, Type: models.TaskTypeActivity},
			},
		},
	}
}

type quizPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"`
}

func quizTask(id, title, question string, reward int, options []string, answer int) models.Task {
	payload, _ := json.Marshal(quizPayload{Question: question, Options: options, Answer: answer})
	return models.Task{
		ID:          id,
		Title:       title,
		Description: question,
		CoinReward:  reward,
		Type:        models.TaskTypeQuiz,
		Payload:     payload,
	}
}
