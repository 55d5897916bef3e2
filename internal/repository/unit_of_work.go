package repository

import (
	"context"

	"gorm.io/gorm"
)

// Stores bundles the repositories that take part in one transaction.
type Stores struct {
	Rooms    RoomRepository
	Profiles ProfileRepository
}

// UnitOfWork runs a callback with repositories bound to a single database transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(stores Stores) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork constructs a transaction runner over the given database.
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(stores Stores) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Stores{
			Rooms:    NewRoomRepository(tx),
			Profiles: NewProfileRepository(tx),
		})
	})
}
