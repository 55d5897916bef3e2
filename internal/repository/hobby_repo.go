package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/questkids-api/internal/models"
)

// HobbyRepository stores generated hobby tracks.
type HobbyRepository interface {
	UpsertBatch(ctx context.Context, hobbies []models.Hobby) (int64, error)
	List(ctx context.Context, ageBracket string) ([]models.Hobby, error)
}

type hobbyRepository struct {
	db *gorm.DB
}

// NewHobbyRepository constructs a hobby repository.
func NewHobbyRepository(db *gorm.DB) HobbyRepository {
	return &hobbyRepository{db: db}
}

func (r *hobbyRepository) UpsertBatch(ctx context.Context, hobbies []models.Hobby) (int64, error) {
	if len(hobbies) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(&hobbies, 50)
	return result.RowsAffected, result.Error
}

func (r *hobbyRepository) List(ctx context.Context, ageBracket string) ([]models.Hobby, error) {
	query := r.db.WithContext(ctx).Model(&models.Hobby{})
	if ageBracket != "" {
		query = query.Where("age_bracket = ?", ageBracket)
	}

	var hobbies []models.Hobby
	if err := query.Order("name ASC").Order("age_bracket ASC").Find(&hobbies).Error; err != nil {
		return nil, err
	}
	return hobbies, nil
}
