package service

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/questkids-api/internal/content"
	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
)

type failingThemeRepo struct {
	repository.ThemeRepository
}

func (failingThemeRepo) ListActive(context.Context) ([]models.Theme, error) {
	return nil, errors.New("index missing")
}

func strPtr(value string) *string { return &value }

func difficultyPtr(value models.Difficulty) *models.Difficulty { return &value }

func TestCatalogThemesFallsBackWithoutUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(repository.NewThemeRepository(db), nil, time.Minute, zerolog.Nop())

	result, err := svc.Themes(context.Background(), "")
	require.NoError(t, err)
	require.True(t, result.Fallback)
	require.Equal(t, WarningSignIn, result.Warning)
	require.Len(t, result.Themes, len(content.SampleThemes()))
}

func TestCatalogThemesFallsBackOnEmptyAndFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(repository.NewThemeRepository(db), nil, time.Minute, zerolog.Nop())

	result, err := svc.Themes(context.Background(), "kid-1")
	require.NoError(t, err)
	require.True(t, result.Fallback)
	require.Equal(t, WarningCatalogNotReady, result.Warning)

	failing := NewCatalogService(failingThemeRepo{}, nil, time.Minute, zerolog.Nop())
	result, err = failing.Themes(context.Background(), "kid-1")
	require.NoError(t, err)
	require.True(t, result.Fallback)
	require.Equal(t, WarningCatalogFailed, result.Warning)
	require.NotEmpty(t, result.Themes)
}

func TestCatalogThemesReadsStoredOrderAndCaches(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewThemeRepository(db)
	_, err := repo.UpsertBatch(context.Background(), []models.Theme{
		{ID: "b", Name: "Second", Difficulty: models.DifficultyEasy, IsActive: true, OrderKey: 2, Tasks: []models.Task{}},
		{ID: "a", Name: "First", Difficulty: models.DifficultyHard, IsActive: true, OrderKey: 1, Tasks: []models.Task{}},
	})
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	svc := NewCatalogService(repo, cache, time.Minute, zerolog.Nop())
	result, err := svc.Themes(context.Background(), "kid-1")
	require.NoError(t, err)
	require.False(t, result.Fallback)
	require.Equal(t, []string{"a", "b"}, themeIDs(result.Themes))
	require.True(t, mr.Exists(catalogCacheKey))

	require.NoError(t, db.Exec("DELETE FROM themes").Error)
	cached, err := svc.Themes(context.Background(), "kid-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, themeIDs(cached.Themes))

	require.NoError(t, svc.Invalidate(context.Background()))
	require.False(t, mr.Exists(catalogCacheKey))
}

func TestCatalogTaskLookupUsesSamplesAsLastResort(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(repository.NewThemeRepository(db), nil, time.Minute, zerolog.Nop())

	theme, task, err := svc.Task(context.Background(), "space-explorers", "space-1")
	require.NoError(t, err)
	require.Equal(t, "Space Explorers", theme.Name)
	require.Equal(t, 10, task.CoinReward)

	_, _, err = svc.Task(context.Background(), "space-explorers", "missing")
	require.ErrorIs(t, err, ErrTaskNotFound)

	_, err = svc.Theme(context.Background(), "nowhere")
	require.ErrorIs(t, err, ErrThemeNotFound)
}

func TestFilterThemesEmptyFilterIsIdentity(t *testing.T) {
	themes := content.SampleThemes()
	require.Equal(t, themes, FilterThemes(themes, ThemeFilter{}))
	require.Equal(t, themes, FilterThemes(themes, ThemeFilter{Search: "   "}))
}

func TestFilterThemesIsConjunctiveSubset(t *testing.T) {
	themes := content.SampleThemes()

	medium := FilterThemes(themes, ThemeFilter{Difficulty: difficultyPtr(models.DifficultyMedium)})
	require.Equal(t, []string{"math-magic", "word-wizards"}, themeIDs(medium))

	both := FilterThemes(themes, ThemeFilter{
		Category:   strPtr("Math"),
		Difficulty: difficultyPtr(models.DifficultyMedium),
	})
	require.Equal(t, []string{"math-magic"}, themeIDs(both))

	searched := FilterThemes(themes, ThemeFilter{Search: "WHALES"})
	require.Equal(t, []string{"ocean-adventures"}, themeIDs(searched))

	none := FilterThemes(themes, ThemeFilter{Category: strPtr("math"), Search: "robot"})
	require.Empty(t, none)

	for _, filter := range []ThemeFilter{
		{Category: strPtr("science")},
		{Difficulty: difficultyPtr(models.DifficultyEasy), Search: "learn"},
		{Search: "e"},
	} {
		result := FilterThemes(themes, filter)
		require.LessOrEqual(t, len(result), len(themes))
		for _, theme := range result {
			require.Contains(t, themeIDs(themes), theme.ID)
		}
	}
}

func TestFilterThemeResponsesMatchesParsedQuery(t *testing.T) {
	themes := content.SampleThemes()
	responses := dto.NewThemeResponseSlice(themes)

	filter := ParseThemeFilter(dto.ThemeListQuery{Category: "math", Difficulty: "medium"})
	require.NotNil(t, filter.Category)
	require.Equal(t, models.DifficultyMedium, *filter.Difficulty)

	filtered := FilterThemeResponses(responses, filter)
	require.Len(t, filtered, 1)
	require.Equal(t, "math-magic", filtered[0].ID)
	require.Equal(t, themeIDs(FilterThemes(themes, filter)), []string{filtered[0].ID})

	require.Equal(t, responses, FilterThemeResponses(responses, ParseThemeFilter(dto.ThemeListQuery{})))
}

func themeIDs(themes []models.Theme) []string {
	ids := make([]string, 0, len(themes))
	for _, theme := range themes {
		ids = append(ids, theme.ID)
	}
	return ids
}
