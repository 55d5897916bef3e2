package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
)

type memoryArchiver struct {
	mu   sync.Mutex
	keys []string
	fail bool
}

func (a *memoryArchiver) Put(_ context.Context, key string, _ []byte) (string, error) {
	if a.fail {
		return "", errors.New("bucket unavailable")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return "rooms/" + key, nil
}

func seedRoom(t *testing.T, repo repository.RoomRepository, room models.Room) {
	t.Helper()
	if room.Status == "" {
		room.Status = models.RoomStatusActive
	}
	require.NoError(t, repo.Create(context.Background(), &room))
}

func activeParticipants() []models.Participant {
	return []models.Participant{{UserID: "kid", DisplayName: "Kid"}}
}

func remainingIDs(t *testing.T, repo repository.RoomRepository) []string {
	t.Helper()
	rooms, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestCleanupStaleDeletesExactlyMatchingRooms(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRoomRepository(db)
	now := time.Now().UTC()

	seedRoom(t, repo, models.Room{ID: "healthy", IsActive: true, Participants: activeParticipants(), CreatedAt: now.Add(-time.Hour)})
	seedRoom(t, repo, models.Room{ID: "inactive", IsActive: false, Participants: activeParticipants(), CreatedAt: now})
	seedRoom(t, repo, models.Room{ID: "empty", IsActive: true, CreatedAt: now})
	seedRoom(t, repo, models.Room{ID: "old", IsActive: true, Participants: activeParticipants(), CreatedAt: now.Add(-25 * time.Hour)})
	seedRoom(t, repo, models.Room{ID: "finished", IsActive: true, Status: models.RoomStatusCompleted, Participants: activeParticipants(), CreatedAt: now})

	archiver := &memoryArchiver{}
	publisher := &recordingPublisher{}
	svc := NewRoomCleanupService(repo, archiver, publisher, 24*time.Hour, zerolog.Nop())

	deleted, err := svc.CleanupStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, deleted)
	require.Equal(t, []string{"healthy"}, remainingIDs(t, repo))
	require.Len(t, archiver.keys, 4)

	events := publisher.Events()
	require.Len(t, events, 4)
	for _, event := range events {
		require.Equal(t, dto.RoomEventDeleted, event.Type)
		require.NotEqual(t, "healthy", event.RoomID)
	}

	deleted, err = svc.CleanupStale(context.Background())
	require.NoError(t, err)
	require.Zero(t, deleted)
}

func TestCleanupOlderThanUsesCreationTimeOnly(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRoomRepository(db)
	now := time.Now().UTC()

	seedRoom(t, repo, models.Room{ID: "ancient", IsActive: true, Participants: activeParticipants(), CreatedAt: now.Add(-72 * time.Hour)})
	seedRoom(t, repo, models.Room{ID: "yesterday", IsActive: true, Participants: activeParticipants(), CreatedAt: now.Add(-30 * time.Hour)})
	seedRoom(t, repo, models.Room{ID: "closed-recent", IsActive: false, CreatedAt: now.Add(-time.Hour)})

	svc := NewRoomCleanupService(repo, nil, nil, 24*time.Hour, zerolog.Nop())

	deleted, err := svc.CleanupOlderThan(context.Background(), 48)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	require.Equal(t, []string{"closed-recent", "yesterday"}, remainingIDs(t, repo))

	deleted, err = svc.CleanupOlderThan(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	require.Equal(t, []string{"closed-recent"}, remainingIDs(t, repo))
}

func TestCleanupContinuesWhenArchiveFails(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRoomRepository(db)
	seedRoom(t, repo, models.Room{ID: "empty", IsActive: true, CreatedAt: time.Now().UTC()})

	svc := NewRoomCleanupService(repo, &memoryArchiver{fail: true}, nil, 24*time.Hour, zerolog.Nop())
	deleted, err := svc.CleanupStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	require.Empty(t, remainingIDs(t, repo))
}
