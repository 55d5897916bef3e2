package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
)

func createRoomWithPlayers(t *testing.T, f *roomFixture) models.Room {
	t.Helper()
	ctx := context.Background()
	f.seedProfile(t, "A", "Ada")
	f.seedProfile(t, "B", "Ben")

	room, err := f.service.Create(ctx, "A", dto.CreateRoomRequest{Name: "Quiz Den"})
	require.NoError(t, err)
	room, err = f.service.Join(ctx, room.ID, "B")
	require.NoError(t, err)
	return room
}

func systemMessages(room models.Room) []models.RoomMessage {
	var messages []models.RoomMessage
	for _, message := range room.Messages {
		if message.SenderID == models.SystemSenderID {
			messages = append(messages, message)
		}
	}
	return messages
}

func TestRoomCreateAddsCreatorAsParticipant(t *testing.T) {
	f := newRoomFixture(t)
	f.seedProfile(t, "A", "Ada")

	room, err := f.service.Create(context.Background(), "A", dto.CreateRoomRequest{Name: "  Quiz Den "})
	require.NoError(t, err)
	require.Equal(t, "Quiz Den", room.Name)
	require.True(t, room.IsActive)
	require.Equal(t, models.RoomStatusActive, room.Status)
	require.Equal(t, 1, room.CurrentPlayers)
	require.Equal(t, 2, room.MaxPlayers)
	require.Equal(t, "Ada", room.Participants[0].DisplayName)
	require.Len(t, systemMessages(room), 1)
	require.Len(t, f.publisher.Events(), 1)

	_, err = f.service.Create(context.Background(), "A", dto.CreateRoomRequest{})
	require.Error(t, err)
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestRoomJoinAppendsParticipantAndSystemMessage(t *testing.T) {
	f := newRoomFixture(t)
	room := createRoomWithPlayers(t, f)

	require.Len(t, room.Participants, 2)
	require.Equal(t, 2, room.CurrentPlayers)
	last := room.Messages[len(room.Messages)-1]
	require.Equal(t, models.SystemSenderID, last.SenderID)
	require.Equal(t, "Ben joined the room", last.Text)
}

func TestRoomJoinIsIdempotentForParticipants(t *testing.T) {
	f := newRoomFixture(t)
	room := createRoomWithPlayers(t, f)

	again, err := f.service.Join(context.Background(), room.ID, "B")
	require.NoError(t, err)
	require.Len(t, again.Participants, 2)
	require.Len(t, again.Messages, len(room.Messages))
}

func TestRoomJoinWhenFullChangesNothing(t *testing.T) {
	f := newRoomFixture(t)
	room := createRoomWithPlayers(t, f)

	_, err := f.service.Join(context.Background(), room.ID, "C")
	require.ErrorIs(t, err, ErrRoomFull)

	stored, err := f.rooms.Get(context.Background(), room.ID)
	require.NoError(t, err)
	require.Equal(t, room.Version, stored.Version)
	require.Len(t, stored.Participants, 2)
	require.Len(t, stored.Messages, len(room.Messages))
}

func TestRoomJoinMissingOrInactive(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()

	_, err := f.service.Join(ctx, "missing", "A")
	require.ErrorIs(t, err, ErrRoomNotFound)

	room, err := f.service.Create(ctx, "A", dto.CreateRoomRequest{Name: "Lonely"})
	require.NoError(t, err)
	_, err = f.service.Leave(ctx, room.ID, "A")
	require.NoError(t, err)

	_, err = f.service.Join(ctx, room.ID, "B")
	require.ErrorIs(t, err, ErrRoomInactive)
}

func TestRoomLastLeaverDeactivatesRoom(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := createRoomWithPlayers(t, f)

	room, err := f.service.Leave(ctx, room.ID, "A")
	require.NoError(t, err)
	require.True(t, room.IsActive)
	require.Equal(t, 1, room.CurrentPlayers)

	room, err = f.service.Leave(ctx, room.ID, "B")
	require.NoError(t, err)
	require.False(t, room.IsActive)
	require.Equal(t, models.RoomStatusCompleted, room.Status)
	require.Empty(t, room.Participants)
	require.Zero(t, room.CurrentPlayers)

	stored, err := f.rooms.Get(ctx, room.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
	require.Empty(t, stored.Participants)
}

func TestRoomLeaveByStrangerIsNoop(t *testing.T) {
	f := newRoomFixture(t)
	room := createRoomWithPlayers(t, f)
	published := len(f.publisher.Events())

	after, err := f.service.Leave(context.Background(), room.ID, "Z")
	require.NoError(t, err)
	require.Equal(t, room.Version, after.Version)
	require.Len(t, f.publisher.Events(), published)
}

func TestRoomSendMessageSanitisesAndValidates(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := createRoomWithPlayers(t, f)

	room, err := f.service.SendMessage(ctx, room.ID, "A", "  <b>hello</b> friends  ")
	require.NoError(t, err)
	last := room.Messages[len(room.Messages)-1]
	require.Equal(t, "hello friends", last.Text)
	require.Equal(t, "A", last.SenderID)
	require.Equal(t, "Ada", last.SenderName)
	require.Equal(t, models.MessageTypeUser, last.Type)

	_, err = f.service.SendMessage(ctx, room.ID, "A", "<script></script>")
	require.ErrorIs(t, err, ErrMessageEmpty)

	_, err = f.service.SendMessage(ctx, room.ID, "A", strings.Repeat("a", 501))
	require.ErrorIs(t, err, ErrMessageTooLong)

	_, err = f.service.SendMessage(ctx, room.ID, "Z", "hi")
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestRoomChallengeRequiresOpponent(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room, err := f.service.Create(ctx, "A", dto.CreateRoomRequest{Name: "Solo"})
	require.NoError(t, err)

	_, err = f.service.CreateChallenge(ctx, room.ID, "A", dto.CreateChallengeRequest{ThemeID: "space-explorers", TaskID: "space-1"})
	require.ErrorIs(t, err, ErrOpponentRequired)

	stored, err := f.rooms.Get(ctx, room.ID)
	require.NoError(t, err)
	require.Nil(t, stored.Challenge())
}

func TestRoomChallengeLifecycleGrantsRewardOnce(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := createRoomWithPlayers(t, f)

	room, err := f.service.CreateChallenge(ctx, room.ID, "A", dto.CreateChallengeRequest{ThemeID: "space-explorers", TaskID: "space-1"})
	require.NoError(t, err)
	challenge := room.Challenge()
	require.NotNil(t, challenge)
	require.Equal(t, models.ChallengeStatusPending, challenge.Status)
	require.Equal(t, "B", challenge.ChallengedID)
	require.Equal(t, 10, challenge.CoinReward)
	require.Nil(t, challenge.WinnerID)

	_, err = f.service.CreateChallenge(ctx, room.ID, "B", dto.CreateChallengeRequest{ThemeID: "space-explorers", TaskID: "space-2"})
	require.ErrorIs(t, err, ErrChallengeInProgress)

	_, err = f.service.AcceptChallenge(ctx, room.ID, "A")
	require.ErrorIs(t, err, ErrNotChallenged)

	_, err = f.service.CompleteChallenge(ctx, room.ID, "B")
	require.ErrorIs(t, err, ErrInvalidTransition)

	room, err = f.service.AcceptChallenge(ctx, room.ID, "B")
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusAccepted, room.Challenge().Status)

	before := len(systemMessages(room))
	room, err = f.service.CompleteChallenge(ctx, room.ID, "B")
	require.NoError(t, err)
	completed := room.Challenge()
	require.Equal(t, models.ChallengeStatusCompleted, completed.Status)
	require.NotNil(t, completed.WinnerID)
	require.Equal(t, "B", *completed.WinnerID)
	require.Len(t, systemMessages(room), before+1)
	require.Equal(t, 10, room.Participants[room.ParticipantIndex("B")].Score)
	require.Equal(t, 10, f.coins(t, "B"))
	require.Equal(t, 0, f.coins(t, "A"))
	require.Equal(t, []string{"B"}, f.scores.users)

	_, err = f.service.CompleteChallenge(ctx, room.ID, "A")
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, 10, f.coins(t, "B"))
	require.Equal(t, 0, f.coins(t, "A"))

	pending := f.delayer.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, 5*time.Second, pending[0].delay)

	f.delayer.RunAll(ctx)
	stored, err := f.rooms.Get(ctx, room.ID)
	require.NoError(t, err)
	require.Nil(t, stored.Challenge())
}

func TestRoomRejectSchedulesShorterReset(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := createRoomWithPlayers(t, f)

	room, err := f.service.CreateChallenge(ctx, room.ID, "A", dto.CreateChallengeRequest{ThemeID: "math-magic", TaskID: "math-1"})
	require.NoError(t, err)
	room, err = f.service.RejectChallenge(ctx, room.ID, "B")
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusRejected, room.Challenge().Status)

	pending := f.delayer.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, 3*time.Second, pending[0].delay)

	_, err = f.service.AcceptChallenge(ctx, room.ID, "B")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRoomResetLeavesNewerChallengeAlone(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := createRoomWithPlayers(t, f)

	room, err := f.service.CreateChallenge(ctx, room.ID, "A", dto.CreateChallengeRequest{ThemeID: "math-magic", TaskID: "math-1"})
	require.NoError(t, err)
	_, err = f.service.RejectChallenge(ctx, room.ID, "B")
	require.NoError(t, err)

	room, err = f.service.CreateChallenge(ctx, room.ID, "B", dto.CreateChallengeRequest{ThemeID: "math-magic", TaskID: "math-2"})
	require.NoError(t, err)
	replacement := room.Challenge()
	require.Equal(t, "A", replacement.ChallengedID)

	f.delayer.RunAll(ctx)
	stored, err := f.rooms.Get(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Challenge())
	require.Equal(t, replacement.ID, stored.Challenge().ID)
	require.Equal(t, models.ChallengeStatusPending, stored.Challenge().Status)
}

func TestRoomLeaveCancelsChallengeOfLeaver(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := createRoomWithPlayers(t, f)

	_, err := f.service.CreateChallenge(ctx, room.ID, "A", dto.CreateChallengeRequest{ThemeID: "space-explorers", TaskID: "space-1"})
	require.NoError(t, err)

	room, err = f.service.Leave(ctx, room.ID, "B")
	require.NoError(t, err)
	require.Nil(t, room.Challenge())
}

// staleOnceUnitOfWork hands the first transaction a snapshot taken before a competing write.
type staleOnceUnitOfWork struct {
	inner repository.UnitOfWork
	stale models.Room
	used  bool
}

type staleRoomRepository struct {
	repository.RoomRepository
	room models.Room
}

func (r staleRoomRepository) Get(context.Context, string) (models.Room, error) {
	return r.room, nil
}

func (u *staleOnceUnitOfWork) Do(ctx context.Context, fn func(stores repository.Stores) error) error {
	return u.inner.Do(ctx, func(stores repository.Stores) error {
		if !u.used {
			u.used = true
			stores.Rooms = staleRoomRepository{RoomRepository: stores.Rooms, room: u.stale}
		}
		return fn(stores)
	})
}

func TestRoomConcurrentCompleteGrantsOnlyOnce(t *testing.T) {
	racing := &staleOnceUnitOfWork{used: true}
	f := newRoomFixtureWithUnitOfWork(t, func(inner repository.UnitOfWork) repository.UnitOfWork {
		racing.inner = inner
		return racing
	})
	ctx := context.Background()
	room := createRoomWithPlayers(t, f)

	_, err := f.service.CreateChallenge(ctx, room.ID, "A", dto.CreateChallengeRequest{ThemeID: "space-explorers", TaskID: "space-1"})
	require.NoError(t, err)
	_, err = f.service.AcceptChallenge(ctx, room.ID, "B")
	require.NoError(t, err)

	stale, err := f.rooms.Get(ctx, room.ID)
	require.NoError(t, err)

	room, err = f.service.CompleteChallenge(ctx, room.ID, "A")
	require.NoError(t, err)
	messages := len(systemMessages(room))

	racing.stale = stale
	racing.used = false
	_, err = f.service.CompleteChallenge(ctx, room.ID, "B")
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.True(t, racing.used)

	require.Equal(t, 10, f.coins(t, "A"))
	require.Equal(t, 0, f.coins(t, "B"))

	stored, err := f.rooms.Get(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, "A", *stored.Challenge().WinnerID)
	require.Len(t, systemMessages(stored), messages)
}

func TestRoomHeartbeatAndPresenceSweep(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := createRoomWithPlayers(t, f)

	_, err := f.service.Heartbeat(ctx, room.ID, "Z")
	require.ErrorIs(t, err, ErrNotParticipant)

	now := time.Now().UTC()
	removed, err := f.service.SweepPresence(ctx, now)
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = f.service.SweepPresence(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	stored, err := f.rooms.Get(ctx, room.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
	require.Empty(t, stored.Participants)
}

func TestRoomListActiveSkipsClosedRooms(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	open := createRoomWithPlayers(t, f)

	closed, err := f.service.Create(ctx, "C", dto.CreateRoomRequest{Name: "Closing"})
	require.NoError(t, err)
	_, err = f.service.Leave(ctx, closed.ID, "C")
	require.NoError(t, err)

	rooms, err := f.service.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, open.ID, rooms[0].ID)

	_, err = f.service.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrRoomNotFound)
}
