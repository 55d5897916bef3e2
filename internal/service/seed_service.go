package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/questkids-api/internal/content"
	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
)

// ErrInvalidSeedData indicates seed content failed validation.
var ErrInvalidSeedData = errors.New("invalid seed data")

const quizPayloadSchema = `{
  "type": "object",
  "required": ["question", "options", "answer"],
  "properties": {
    "question": {"type": "string", "minLength": 1},
    "options": {"type": "array", "minItems": 2, "items": {"type": "string", "minLength": 1}},
    "answer": {"type": "integer", "minimum": 0}
  }
}`

// SeedService loads the theme catalog and generated hobby tracks into storage.
type SeedService interface {
	Seed(ctx context.Context, seed int64) (dto.SeedSummary, error)
	SeedThemes(ctx context.Context, themes []models.Theme) (int, error)
	SeedHobbies(ctx context.Context, seed int64) (int, int, error)
}

type seedService struct {
	themes     repository.ThemeRepository
	hobbies    repository.HobbyRepository
	catalog    CatalogService
	quizSchema *jsonschema.Schema
	logger     zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(themes repository.ThemeRepository, hobbies repository.HobbyRepository, catalog CatalogService, logger zerolog.Logger) (SeedService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("quiz.json", strings.NewReader(quizPayloadSchema)); err != nil {
		return nil, fmt.Errorf("load quiz schema: %w", err)
	}
	schema, err := compiler.Compile("quiz.json")
	if err != nil {
		return nil, fmt.Errorf("compile quiz schema: %w", err)
	}

	return &seedService{
		themes:     themes,
		hobbies:    hobbies,
		catalog:    catalog,
		quizSchema: schema,
		logger:     logger.With().Str("component", "seed_service").Logger(),
	}, nil
}

// Seed stores the sample themes and hobbies generated from the seed. Zero picks a time based seed.
func (s *seedService) Seed(ctx context.Context, seed int64) (dto.SeedSummary, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	themes, err := s.SeedThemes(ctx, content.SampleThemes())
	if err != nil {
		return dto.SeedSummary{}, err
	}
	hobbies, tasks, err := s.SeedHobbies(ctx, seed)
	if err != nil {
		return dto.SeedSummary{}, err
	}

	return dto.SeedSummary{Seed: seed, Themes: themes, Hobbies: hobbies, Tasks: tasks}, nil
}

func (s *seedService) SeedThemes(ctx context.Context, themes []models.Theme) (int, error) {
	normalized, err := s.normalizeThemes(themes)
	if err != nil {
		return 0, err
	}
	if _, err := s.themes.UpsertBatch(ctx, normalized); err != nil {
		return 0, fmt.Errorf("store themes: %w", err)
	}
	if s.catalog != nil {
		if err := s.catalog.Invalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate catalog cache")
		}
	}

	s.logger.Info().Int("themes", len(normalized)).Msg("themes seeded")
	return len(normalized), nil
}

func (s *seedService) SeedHobbies(ctx context.Context, seed int64) (int, int, error) {
	rng := rand.New(rand.NewSource(seed))
	hobbies := content.Generate(rng, content.Options{})

	if _, err := s.hobbies.UpsertBatch(ctx, hobbies); err != nil {
		return 0, 0, fmt.Errorf("store hobbies: %w", err)
	}

	tasks := 0
	for _, hobby := range hobbies {
		tasks += hobby.TaskCount()
	}
	s.logger.Info().Int64("seed", seed).Int("hobbies", len(hobbies)).Int("tasks", tasks).Msg("hobbies seeded")
	return len(hobbies), tasks, nil
}

func (s *seedService) normalizeThemes(themes []models.Theme) ([]models.Theme, error) {
	normalized := make([]models.Theme, 0, len(themes))
	for i, theme := range themes {
		theme.Name = strings.TrimSpace(theme.Name)
		if theme.Name == "" {
			return nil, fmt.Errorf("%w: theme %d has no name", ErrInvalidSeedData, i)
		}
		if theme.ID == "" {
			theme.ID = slug.Make(theme.Name)
		}
		difficulty, ok := models.ParseDifficulty(string(theme.Difficulty))
		if !ok {
			return nil, fmt.Errorf("%w: theme %s has unknown difficulty %q", ErrInvalidSeedData, theme.ID, theme.Difficulty)
		}
		theme.Difficulty = difficulty
		if theme.OrderKey == 0 {
			theme.OrderKey = i + 1
		}
		if len(theme.Tasks) == 0 {
			return nil, fmt.Errorf("%w: theme %s has no tasks", ErrInvalidSeedData, theme.ID)
		}

		seen := make(map[string]struct{}, len(theme.Tasks))
		for j := range theme.Tasks {
			task := &theme.Tasks[j]
			if task.ID == "" {
				task.ID = slug.Make(theme.ID + " " + task.Title)
			}
			if _, dup := seen[task.ID]; dup {
				return nil, fmt.Errorf("%w: theme %s repeats task %s", ErrInvalidSeedData, theme.ID, task.ID)
			}
			seen[task.ID] = struct{}{}
			if task.CoinReward <= 0 {
				return nil, fmt.Errorf("%w: task %s must reward coins", ErrInvalidSeedData, task.ID)
			}
			if err := s.validatePayload(*task); err != nil {
				return nil, fmt.Errorf("%w: task %s: %v", ErrInvalidSeedData, task.ID, err)
			}
		}
		normalized = append(normalized, theme)
	}
	return normalized, nil
}

func (s *seedService) validatePayload(task models.Task) error {
	if task.Type != models.TaskTypeQuiz {
		return nil
	}
	if len(task.Payload) == 0 {
		return errors.New("quiz without payload")
	}

	var decoded interface{}
	if err := json.Unmarshal(task.Payload, &decoded); err != nil {
		return err
	}
	if err := s.quizSchema.Validate(decoded); err != nil {
		return err
	}

	var quiz struct {
		Options []string `json:"options"`
		Answer  int      `json:"answer"`
	}
	if err := json.Unmarshal(task.Payload, &quiz); err != nil {
		return err
	}
	if quiz.Answer >= len(quiz.Options) {
		return fmt.Errorf("answer %d out of range", quiz.Answer)
	}
	return nil
}
