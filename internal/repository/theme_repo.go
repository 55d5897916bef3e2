package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/questkids-api/internal/models"
)

// ThemeRepository exposes quest theme persistence helpers.
type ThemeRepository interface {
	ListActive(ctx context.Context) ([]models.Theme, error)
	Get(ctx context.Context, id string) (models.Theme, error)
	UpsertBatch(ctx context.Context, themes []models.Theme) (int64, error)
}

type themeRepository struct {
	db *gorm.DB
}

// NewThemeRepository constructs a theme repository.
func NewThemeRepository(db *gorm.DB) ThemeRepository {
	return &themeRepository{db: db}
}

func (r *themeRepository) ListActive(ctx context.Context) ([]models.Theme, error) {
	var themes []models.Theme
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("order_key ASC").
		Order("id ASC").
		Find(&themes).Error
	if err != nil {
		return nil, err
	}
	return themes, nil
}

func (r *themeRepository) Get(ctx context.Context, id string) (models.Theme, error) {
	var theme models.Theme
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&theme).Error; err != nil {
		return models.Theme{}, err
	}
	return theme, nil
}

func (r *themeRepository) UpsertBatch(ctx context.Context, themes []models.Theme) (int64, error) {
	if len(themes) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&themes)
	return result.RowsAffected, result.Error
}
