package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/questkids-api/internal/models"
)

// ErrRoomVersionConflict indicates another writer updated the room first.
var ErrRoomVersionConflict = errors.New("room was modified concurrently")

// RoomRepository persists room documents.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, id string) (models.Room, error)
	ListActive(ctx context.Context) ([]models.Room, error)
	ListAll(ctx context.Context) ([]models.Room, error)
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Room, error)
	Save(ctx context.Context, room *models.Room, expectedVersion int64) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs a room repository backed by GORM.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	room.Normalize()
	if room.Version == 0 {
		room.Version = 1
	}
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *roomRepository) Get(ctx context.Context, id string) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) ListActive(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND status = ?", true, models.RoomStatusActive).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepository) ListAll(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Room, error) {
	var rooms []models.Room
	if err := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// Save writes the whole room document only if nobody bumped the version since it was read.
func (r *roomRepository) Save(ctx context.Context, room *models.Room, expectedVersion int64) error {
	room.Normalize()
	room.Version = expectedVersion + 1

	result := r.db.WithContext(ctx).
		Model(room).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("created_at").
		Updates(room)
	if result.Error != nil {
		room.Version = expectedVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		room.Version = expectedVersion
		return ErrRoomVersionConflict
	}
	return nil
}

func (r *roomRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Room{})
	return result.RowsAffected, result.Error
}

func (r *roomRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Room{})
	return result.RowsAffected, result.Error
}
