package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/observability"
	"github.com/noah-isme/questkids-api/internal/repository"
)

// Cleanup modes reported in logs and metrics.
const (
	CleanupModeStale   = "stale"
	CleanupModeOldOnly = "old_only"
)

// DefaultOldRoomHours is used when no age is given for age-only cleanup.
const DefaultOldRoomHours = 24

// RoomArchiver keeps a copy of a room document before it is removed.
type RoomArchiver interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
}

// RoomCleanupService garbage-collects finished and abandoned rooms.
type RoomCleanupService interface {
	CleanupStale(ctx context.Context) (int, error)
	CleanupOlderThan(ctx context.Context, hours int) (int, error)
}

type roomCleanupService struct {
	rooms      repository.RoomRepository
	archiver   RoomArchiver
	publisher  RoomPublisher
	staleAfter time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewRoomCleanupService constructs the cleanup service. Archiver and publisher are optional.
func NewRoomCleanupService(rooms repository.RoomRepository, archiver RoomArchiver, publisher RoomPublisher, staleAfter time.Duration, logger zerolog.Logger) RoomCleanupService {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &roomCleanupService{
		rooms:      rooms,
		archiver:   archiver,
		publisher:  publisher,
		staleAfter: staleAfter,
		logger:     logger.With().Str("component", "room_cleanup").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CleanupStale scans every room and deletes those that are inactive, empty, completed or
// older than the stale threshold.
func (s *roomCleanupService) CleanupStale(ctx context.Context) (int, error) {
	rooms, err := s.rooms.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rooms: %w", err)
	}

	now := s.now()
	stale := make([]models.Room, 0)
	for _, room := range rooms {
		if room.IsStale(now, s.staleAfter) {
			stale = append(stale, room)
		}
	}

	s.logger.Info().Int("scanned", len(rooms)).Int("stale", len(stale)).Msg("room scan finished")
	return s.remove(ctx, CleanupModeStale, stale, func(ids []string) (int64, error) {
		return s.rooms.DeleteByIDs(ctx, ids)
	})
}

// CleanupOlderThan deletes every room created more than the given number of hours ago in one statement.
func (s *roomCleanupService) CleanupOlderThan(ctx context.Context, hours int) (int, error) {
	if hours <= 0 {
		hours = DefaultOldRoomHours
	}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)

	var doomed []models.Room
	if s.archiver != nil || s.publisher != nil {
		listed, err := s.rooms.ListCreatedBefore(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("list old rooms: %w", err)
		}
		doomed = listed
	}

	s.logger.Info().Int("hours", hours).Time("cutoff", cutoff).Msg("deleting old rooms")
	return s.remove(ctx, CleanupModeOldOnly, doomed, func([]string) (int64, error) {
		return s.rooms.DeleteCreatedBefore(ctx, cutoff)
	})
}

func (s *roomCleanupService) remove(ctx context.Context, mode string, rooms []models.Room, del func(ids []string) (int64, error)) (int, error) {
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		s.archive(ctx, room)
		ids = append(ids, room.ID)
	}

	if mode == CleanupModeStale && len(ids) == 0 {
		return 0, nil
	}

	deleted, err := del(ids)
	if err != nil {
		return 0, fmt.Errorf("delete rooms: %w", err)
	}

	observability.RoomCleanupDeleted().WithLabelValues(mode).Add(float64(deleted))
	s.logger.Info().Str("mode", mode).Int64("deleted", deleted).Msg("rooms deleted")

	if s.publisher != nil {
		for _, id := range ids {
			s.publisher.Publish(ctx, dto.RoomEvent{Type: dto.RoomEventDeleted, RoomID: id, SentAt: s.now()})
		}
	}
	return int(deleted), nil
}

// archive failures are logged and never block deletion.
func (s *roomCleanupService) archive(ctx context.Context, room models.Room) {
	if s.archiver == nil {
		return
	}

	payload, err := json.Marshal(dto.NewRoomResponse(room))
	if err != nil {
		s.logger.Warn().Err(err).Str("room_id", room.ID).Msg("failed to encode room for archive")
		return
	}

	key := fmt.Sprintf("%s/%s.json", room.CreatedAt.UTC().Format("2006/01/02"), room.ID)
	if _, err := s.archiver.Put(ctx, key, payload); err != nil {
		s.logger.Warn().Err(err).Str("room_id", room.ID).Msg("failed to archive room")
	}
}
