package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/questkids-api/internal/models"
)

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (models.UserProfile, error)
	GetForUpdate(ctx context.Context, userID string) (models.UserProfile, error)
	Ensure(ctx context.Context, userID string) (models.UserProfile, error)
	Save(ctx context.Context, profile *models.UserProfile) error
	Grant(ctx context.Context, userID string, coins, experience int) error
	Top(ctx context.Context, orderBy string, limit int) ([]models.UserProfile, error)
	GetMany(ctx context.Context, userIDs []string) ([]models.UserProfile, error)
	Count(ctx context.Context) (int64, error)
	EachBatch(ctx context.Context, size int, fn func(batch []models.UserProfile) error) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository constructs a profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, userID string) (models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

// GetForUpdate reads the profile and locks its row until the surrounding transaction ends.
func (r *profileRepository) GetForUpdate(ctx context.Context, userID string) (models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

// Ensure returns the stored profile, creating an empty one on first access.
func (r *profileRepository) Ensure(ctx context.Context, userID string) (models.UserProfile, error) {
	profile, err := r.Get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserProfile{}, err
	}

	profile = models.UserProfile{
		UserID:         userID,
		Level:          models.LevelFor(0),
		CompletedTasks: []string{},
		Friends:        []string{},
	}
	if err := r.db.WithContext(ctx).Where(models.UserProfile{UserID: userID}).FirstOrCreate(&profile).Error; err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (r *profileRepository) Save(ctx context.Context, profile *models.UserProfile) error {
	if profile.CompletedTasks == nil {
		profile.CompletedTasks = []string{}
	}
	if profile.Friends == nil {
		profile.Friends = []string{}
	}
	profile.Level = models.LevelFor(profile.Experience)
	return r.db.WithContext(ctx).Save(profile).Error
}

// Grant adds coins and experience in a single statement so concurrent grants never overwrite each other.
func (r *profileRepository) Grant(ctx context.Context, userID string, coins, experience int) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"coins":      gorm.Expr("coins + ?", coins),
			"experience": gorm.Expr("experience + ?", experience),
			"level":      gorm.Expr("(experience + ?) / ? + 1", experience, models.ExperiencePerLevel),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *profileRepository) Top(ctx context.Context, orderBy string, limit int) ([]models.UserProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	order := "coins DESC, experience DESC, user_id ASC"
	if orderBy == "experience" {
		order = "experience DESC, coins DESC, user_id ASC"
	}

	var profiles []models.UserProfile
	if err := r.db.WithContext(ctx).Order(order).Limit(limit).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) GetMany(ctx context.Context, userIDs []string) ([]models.UserProfile, error) {
	if len(userIDs) == 0 {
		return []models.UserProfile{}, nil
	}
	var profiles []models.UserProfile
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.UserProfile{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// EachBatch walks every profile in primary key order, size rows at a time.
func (r *profileRepository) EachBatch(ctx context.Context, size int, fn func(batch []models.UserProfile) error) error {
	if size <= 0 {
		size = 500
	}
	var batch []models.UserProfile
	return r.db.WithContext(ctx).FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}
