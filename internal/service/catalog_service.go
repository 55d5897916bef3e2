package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/questkids-api/internal/content"
	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/observability"
	"github.com/noah-isme/questkids-api/internal/repository"
)

const catalogCacheKey = "catalog:themes:v1"

// Warnings attached to fallback catalog results.
const (
	WarningSignIn          = "sign in to load your quests"
	WarningCatalogFailed   = "quests could not be loaded, showing sample quests instead"
	WarningCatalogNotReady = "no quests are available yet, showing sample quests instead"
)

var (
	// ErrThemeNotFound indicates the theme id resolves neither in storage nor in the sample set.
	ErrThemeNotFound = errors.New("theme not found")
	// ErrTaskNotFound indicates the theme exists but has no task with the id.
	ErrTaskNotFound = errors.New("task not found")
)

// CatalogResult is the unfiltered theme collection along with where it came from.
type CatalogResult struct {
	Themes   []models.Theme
	Fallback bool
	Warning  string
}

// ThemeFilter narrows a theme list. Nil and empty fields do not filter.
type ThemeFilter struct {
	Category   *string
	Difficulty *models.Difficulty
	Search     string
}

// CatalogService provides the quest theme catalog.
type CatalogService interface {
	Themes(ctx context.Context, userID string) (CatalogResult, error)
	Theme(ctx context.Context, themeID string) (models.Theme, error)
	Task(ctx context.Context, themeID, taskID string) (models.Theme, models.Task, error)
	Invalidate(ctx context.Context) error
}

type catalogService struct {
	repo   repository.ThemeRepository
	cache  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewCatalogService constructs the catalog provider. The cache is optional.
func NewCatalogService(repo repository.ThemeRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) CatalogService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &catalogService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		tracer: otel.Tracer("github.com/noah-isme/questkids-api/internal/service/catalog"),
		logger: logger.With().Str("component", "catalog_service").Logger(),
	}
}

// Themes never fails because of storage problems; it substitutes the sample set and reports a warning.
func (s *catalogService) Themes(ctx context.Context, userID string) (CatalogResult, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.themes", trace.WithAttributes(attribute.Bool("catalog.authenticated", userID != "")))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		observability.CatalogRequests().WithLabelValues("fallback").Inc()
		return fallbackResult(WarningSignIn), nil
	}

	if themes, ok := s.fetchCache(ctx); ok {
		observability.CatalogRequests().WithLabelValues("cache").Inc()
		return CatalogResult{Themes: themes}, nil
	}

	themes, err := s.repo.ListActive(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return CatalogResult{}, ctxErr
		}
		span.RecordError(err)
		s.logger.Warn().Err(err).Msg("failed to load themes, using sample catalog")
		observability.CatalogRequests().WithLabelValues("fallback").Inc()
		return fallbackResult(WarningCatalogFailed), nil
	}
	if len(themes) == 0 {
		observability.CatalogRequests().WithLabelValues("fallback").Inc()
		return fallbackResult(WarningCatalogNotReady), nil
	}

	s.writeCache(ctx, themes)
	observability.CatalogRequests().WithLabelValues("database").Inc()
	return CatalogResult{Themes: themes}, nil
}

func (s *catalogService) Theme(ctx context.Context, themeID string) (models.Theme, error) {
	themeID = strings.TrimSpace(themeID)
	if themeID == "" {
		return models.Theme{}, ErrThemeNotFound
	}

	theme, err := s.repo.Get(ctx, themeID)
	if err == nil {
		return theme, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Err(err).Str("theme_id", themeID).Msg("theme lookup failed, trying sample catalog")
	}

	for _, sample := range content.SampleThemes() {
		if sample.ID == themeID {
			return sample, nil
		}
	}
	return models.Theme{}, ErrThemeNotFound
}

func (s *catalogService) Task(ctx context.Context, themeID, taskID string) (models.Theme, models.Task, error) {
	theme, err := s.Theme(ctx, themeID)
	if err != nil {
		return models.Theme{}, models.Task{}, err
	}
	task, ok := theme.FindTask(strings.TrimSpace(taskID))
	if !ok {
		return models.Theme{}, models.Task{}, ErrTaskNotFound
	}
	return theme, task, nil
}

func (s *catalogService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, catalogCacheKey).Err()
}

func (s *catalogService) fetchCache(ctx context.Context) ([]models.Theme, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, err := s.cache.Get(ctx, catalogCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read catalog cache")
		}
		return nil, false
	}

	var themes []models.Theme
	if err := json.Unmarshal(payload, &themes); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode catalog cache")
		return nil, false
	}
	return themes, len(themes) > 0
}

func (s *catalogService) writeCache(ctx context.Context, themes []models.Theme) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(themes)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode catalog cache")
		return
	}
	if err := s.cache.Set(ctx, catalogCacheKey, payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store catalog cache")
	}
}

func fallbackResult(warning string) CatalogResult {
	return CatalogResult{Themes: content.SampleThemes(), Fallback: true, Warning: warning}
}

// FilterThemes keeps the themes matching every set criterion, preserving order.
// Search matches name or description case-insensitively.
func FilterThemes(themes []models.Theme, filter ThemeFilter) []models.Theme {
	if filter.empty() {
		return themes
	}

	filtered := make([]models.Theme, 0, len(themes))
	for _, theme := range themes {
		if filter.matches(theme.Category, theme.Difficulty, theme.Name, theme.Description) {
			filtered = append(filtered, theme)
		}
	}
	return filtered
}

// FilterThemeResponses applies the same rules to already serialized themes, as kept in session state.
func FilterThemeResponses(themes []dto.ThemeResponse, filter ThemeFilter) []dto.ThemeResponse {
	if filter.empty() {
		return themes
	}

	filtered := make([]dto.ThemeResponse, 0, len(themes))
	for _, theme := range themes {
		if filter.matches(theme.Category, models.Difficulty(theme.Difficulty), theme.Name, theme.Description) {
			filtered = append(filtered, theme)
		}
	}
	return filtered
}

// ParseThemeFilter turns validated query values into a filter.
func ParseThemeFilter(query dto.ThemeListQuery) ThemeFilter {
	filter := ThemeFilter{Search: query.Search}
	if category := strings.TrimSpace(query.Category); category != "" {
		filter.Category = &category
	}
	if difficulty, ok := models.ParseDifficulty(query.Difficulty); ok {
		filter.Difficulty = &difficulty
	}
	return filter
}

func (f ThemeFilter) empty() bool {
	return f.Category == nil && f.Difficulty == nil && strings.TrimSpace(f.Search) == ""
}

func (f ThemeFilter) matches(category string, difficulty models.Difficulty, name, description string) bool {
	if f.Category != nil && !strings.EqualFold(category, *f.Category) {
		return false
	}
	if f.Difficulty != nil && difficulty != *f.Difficulty {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), search) ||
		strings.Contains(strings.ToLower(description), search)
}
