package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/questkids-api/internal/content"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
)

func newSeedService(t *testing.T) (SeedService, repository.ThemeRepository, repository.HobbyRepository) {
	t.Helper()
	db := newTestDB(t)
	themes := repository.NewThemeRepository(db)
	hobbies := repository.NewHobbyRepository(db)
	catalog := NewCatalogService(themes, nil, time.Minute, zerolog.Nop())
	svc, err := NewSeedService(themes, hobbies, catalog, zerolog.Nop())
	require.NoError(t, err)
	return svc, themes, hobbies
}

func TestSeedStoresThemesAndHobbies(t *testing.T) {
	svc, themes, hobbies := newSeedService(t)
	ctx := context.Background()

	summary, err := svc.Seed(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), summary.Seed)
	require.Equal(t, len(content.SampleThemes()), summary.Themes)
	require.Equal(t, 12*len(content.DefaultAgeBrackets), summary.Hobbies)
	require.Greater(t, summary.Tasks, summary.Hobbies*2*20-1)

	stored, err := themes.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, stored, summary.Themes)
	require.Equal(t, "space-explorers", stored[0].ID)

	young, err := hobbies.List(ctx, "4-6")
	require.NoError(t, err)
	require.Len(t, young, 12)

	again, err := svc.Seed(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, summary, again)
	all, err := hobbies.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, summary.Hobbies)
}

func TestSeedThemesRejectsBrokenQuizPayloads(t *testing.T) {
	svc, _, _ := newSeedService(t)

	badSchema, _ := json.Marshal(map[string]interface{}{"question": "Why?", "options": []string{"only one"}, "answer": 0})
	_, err := svc.SeedThemes(context.Background(), []models.Theme{{
		Name:       "Broken",
		Difficulty: "easy",
		Tasks:      []models.Task{{ID: "q", Title: "Q", CoinReward: 5, Type: models.TaskTypeQuiz, Payload: badSchema}},
	}})
	require.ErrorIs(t, err, ErrInvalidSeedData)

	outOfRange, _ := json.Marshal(map[string]interface{}{"question": "Why?", "options": []string{"a", "b"}, "answer": 4})
	_, err = svc.SeedThemes(context.Background(), []models.Theme{{
		Name:       "Broken",
		Difficulty: "easy",
		Tasks:      []models.Task{{ID: "q", Title: "Q", CoinReward: 5, Type: models.TaskTypeQuiz, Payload: outOfRange}},
	}})
	require.ErrorIs(t, err, ErrInvalidSeedData)
}

func TestSeedThemesNormalisesIdentifiers(t *testing.T) {
	svc, themes, _ := newSeedService(t)
	ctx := context.Background()

	count, err := svc.SeedThemes(ctx, []models.Theme{{
		Name:       "Dino Days",
		Difficulty: "HARD",
		IsActive:   true,
		Tasks:      []models.Task{{Title: "Fossil Hunt", CoinReward: 15, Type: models.TaskTypeActivity}},
	}})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	stored, err := themes.Get(ctx, "dino-days")
	require.NoError(t, err)
	require.Equal(t, models.DifficultyHard, stored.Difficulty)
	require.Equal(t, "dino-days-fossil-hunt", stored.Tasks[0].ID)

	_, err = svc.SeedThemes(ctx, []models.Theme{{Name: "Odd", Difficulty: "legendary", Tasks: []models.Task{{Title: "x", CoinReward: 1}}}})
	require.ErrorIs(t, err, ErrInvalidSeedData)
}
