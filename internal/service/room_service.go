package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/jobs"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/observability"
	"github.com/noah-isme/questkids-api/internal/repository"
)

const (
	roomSaveAttempts = 3
	maxMessageLength = 500
)

var (
	// ErrRoomNotFound indicates the room document does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomInactive indicates the room was closed and accepts no new participants.
	ErrRoomInactive = errors.New("room is no longer active")
	// ErrRoomFull indicates the room reached its player limit.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomBusy indicates every attempt lost the race against concurrent writers.
	ErrRoomBusy = errors.New("room is busy, try again")
	// ErrNotParticipant indicates the caller has not joined the room.
	ErrNotParticipant = errors.New("you are not in this room")
	// ErrOpponentRequired indicates a challenge needs a second participant.
	ErrOpponentRequired = errors.New("wait for another player to join before challenging")
	// ErrChallengeInProgress indicates a pending or accepted challenge already exists.
	ErrChallengeInProgress = errors.New("a challenge is already in progress")
	// ErrNoChallenge indicates the room has no current challenge.
	ErrNoChallenge = errors.New("there is no challenge in this room")
	// ErrNotChallenged indicates only the challenged participant may respond.
	ErrNotChallenged = errors.New("only the challenged player can respond")
	// ErrNotChallengeParty indicates the caller is neither challenger nor challenged.
	ErrNotChallengeParty = errors.New("only the two challenge players can complete it")
	// ErrInvalidTransition indicates the challenge is not in the state the action requires.
	ErrInvalidTransition = errors.New("challenge cannot do that right now")
	// ErrInvalidOpponent indicates the challenged user is not another participant.
	ErrInvalidOpponent = errors.New("challenged player must be another participant")
	// ErrMessageEmpty indicates nothing remained of the message after sanitising.
	ErrMessageEmpty = errors.New("message is empty")
	// ErrMessageTooLong indicates the message exceeds the chat limit.
	ErrMessageTooLong = errors.New("message is too long")
)

// RoomPublisher delivers room snapshots to live subscribers.
type RoomPublisher interface {
	Publish(ctx context.Context, event dto.RoomEvent)
}

// ScoreRecorder mirrors profile totals into the leaderboard.
type ScoreRecorder interface {
	Record(ctx context.Context, userID string)
}

// RoomServiceConfig carries the room tunables.
type RoomServiceConfig struct {
	MaxPlayers         int
	PresenceTTL        time.Duration
	RejectResetDelay   time.Duration
	CompleteResetDelay time.Duration
}

// RoomService is the single authority over challenge room state.
type RoomService interface {
	Create(ctx context.Context, callerID string, req dto.CreateRoomRequest) (models.Room, error)
	Get(ctx context.Context, roomID string) (models.Room, error)
	ListActive(ctx context.Context) ([]models.Room, error)
	Join(ctx context.Context, roomID, callerID string) (models.Room, error)
	Leave(ctx context.Context, roomID, callerID string) (models.Room, error)
	Heartbeat(ctx context.Context, roomID, callerID string) (models.Room, error)
	SweepPresence(ctx context.Context, now time.Time) (int, error)
	SendMessage(ctx context.Context, roomID, callerID, text string) (models.Room, error)
	CreateChallenge(ctx context.Context, roomID, callerID string, req dto.CreateChallengeRequest) (models.Room, error)
	AcceptChallenge(ctx context.Context, roomID, callerID string) (models.Room, error)
	RejectChallenge(ctx context.Context, roomID, callerID string) (models.Room, error)
	CompleteChallenge(ctx context.Context, roomID, callerID string) (models.Room, error)
	ResetChallenge(ctx context.Context, roomID, challengeID string) (models.Room, error)
}

type roomService struct {
	uow       repository.UnitOfWork
	rooms     repository.RoomRepository
	profiles  repository.ProfileRepository
	catalog   CatalogService
	publisher RoomPublisher
	scores    ScoreRecorder
	delayer   jobs.Delayer
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
	config    RoomServiceConfig
	now       func() time.Time
}

// roomChange is applied to a freshly loaded room inside a transaction.
// Returning false leaves the room untouched and skips the write.
type roomChange func(stores repository.Stores, room *models.Room, now time.Time) (bool, error)

// NewRoomService constructs the room authority. Publisher and scores may be nil.
func NewRoomService(
	uow repository.UnitOfWork,
	rooms repository.RoomRepository,
	profiles repository.ProfileRepository,
	catalog CatalogService,
	publisher RoomPublisher,
	scores ScoreRecorder,
	delayer jobs.Delayer,
	validate *validator.Validate,
	logger zerolog.Logger,
	cfg RoomServiceConfig,
) RoomService {
	if cfg.MaxPlayers < 2 {
		cfg.MaxPlayers = 4
	}
	if cfg.PresenceTTL <= 0 {
		cfg.PresenceTTL = 2 * time.Minute
	}
	if cfg.RejectResetDelay <= 0 {
		cfg.RejectResetDelay = 3 * time.Second
	}
	if cfg.CompleteResetDelay <= 0 {
		cfg.CompleteResetDelay = 5 * time.Second
	}

	return &roomService{
		uow:       uow,
		rooms:     rooms,
		profiles:  profiles,
		catalog:   catalog,
		publisher: publisher,
		scores:    scores,
		delayer:   delayer,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("github.com/noah-isme/questkids-api/internal/service/room"),
		logger:    logger.With().Str("component", "room_service").Logger(),
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *roomService) Create(ctx context.Context, callerID string, req dto.CreateRoomRequest) (models.Room, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return models.Room{}, err
	}

	profile, err := s.profiles.Ensure(ctx, callerID)
	if err != nil {
		return models.Room{}, fmt.Errorf("load profile: %w", err)
	}

	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = s.config.MaxPlayers
	}

	now := s.now()
	room := models.Room{
		ID:         uuid.NewString(),
		Name:       req.Name,
		IsActive:   true,
		Status:     models.RoomStatusActive,
		MaxPlayers: maxPlayers,
		CreatedBy:  callerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	room.Participants = append(room.Participants, newParticipant(profile, now))
	room.Messages = append(room.Messages, systemMessage(fmt.Sprintf("%s created the room", profile.DisplayName()), now))

	if err := s.rooms.Create(ctx, &room); err != nil {
		observability.RoomTransitions().WithLabelValues("create", "error").Inc()
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}

	observability.RoomTransitions().WithLabelValues("create", "ok").Inc()
	observability.RoomMessages().WithLabelValues(models.MessageTypeSystem).Inc()
	s.logger.Info().Str("room_id", room.ID).Str("user_id", callerID).Msg("room created")
	s.publishUpdate(ctx, room)
	return room, nil
}

func (s *roomService) Get(ctx context.Context, roomID string) (models.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Room{}, ErrRoomNotFound
		}
		return models.Room{}, err
	}
	return room, nil
}

func (s *roomService) ListActive(ctx context.Context) ([]models.Room, error) {
	return s.rooms.ListActive(ctx)
}

func (s *roomService) Join(ctx context.Context, roomID, callerID string) (models.Room, error) {
	profile, err := s.profiles.Ensure(ctx, callerID)
	if err != nil {
		return models.Room{}, fmt.Errorf("load profile: %w", err)
	}

	return s.apply(ctx, "join", roomID, callerID, func(_ repository.Stores, room *models.Room, now time.Time) (bool, error) {
		if !room.IsActive || room.Status != models.RoomStatusActive {
			return false, ErrRoomInactive
		}
		if idx := room.ParticipantIndex(callerID); idx >= 0 {
			room.Participants[idx].LastSeenAt = now
			return true, nil
		}
		if room.IsFull() {
			return false, ErrRoomFull
		}

		participant := newParticipant(profile, now)
		room.Participants = append(room.Participants, participant)
		room.Messages = append(room.Messages, systemMessage(fmt.Sprintf("%s joined the room", participant.DisplayName), now))
		return true, nil
	})
}

func (s *roomService) Leave(ctx context.Context, roomID, callerID string) (models.Room, error) {
	return s.apply(ctx, "leave", roomID, callerID, func(_ repository.Stores, room *models.Room, now time.Time) (bool, error) {
		return removeParticipant(room, callerID, now, "left the room"), nil
	})
}

func (s *roomService) Heartbeat(ctx context.Context, roomID, callerID string) (models.Room, error) {
	return s.applyQuiet(ctx, "heartbeat", roomID, callerID, func(_ repository.Stores, room *models.Room, now time.Time) (bool, error) {
		idx := room.ParticipantIndex(callerID)
		if idx < 0 {
			return false, ErrNotParticipant
		}
		room.Participants[idx].LastSeenAt = now
		return true, nil
	})
}

// SweepPresence removes participants whose last heartbeat is older than the presence TTL.
func (s *roomService) SweepPresence(ctx context.Context, now time.Time) (int, error) {
	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active rooms: %w", err)
	}

	cutoff := now.Add(-s.config.PresenceTTL)
	removed := 0
	for _, room := range rooms {
		for _, participant := range room.Participants {
			if !participant.LastSeenAt.Before(cutoff) {
				continue
			}
			userID := participant.UserID
			_, err := s.apply(ctx, "expire", room.ID, userID, func(_ repository.Stores, current *models.Room, at time.Time) (bool, error) {
				idx := current.ParticipantIndex(userID)
				if idx < 0 || !current.Participants[idx].LastSeenAt.Before(cutoff) {
					return false, nil
				}
				return removeParticipant(current, userID, at, "disconnected"), nil
			})
			if err != nil {
				if errors.Is(err, ErrRoomNotFound) {
					break
				}
				s.logger.Warn().Err(err).Str("room_id", room.ID).Str("user_id", userID).Msg("failed to expire participant")
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("expired idle participants")
	}
	return removed, nil
}

func (s *roomService) SendMessage(ctx context.Context, roomID, callerID, text string) (models.Room, error) {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(text))
	if clean == "" {
		return models.Room{}, ErrMessageEmpty
	}
	if utf8.RuneCountInString(clean) > maxMessageLength {
		return models.Room{}, ErrMessageTooLong
	}

	room, err := s.apply(ctx, "message", roomID, callerID, func(_ repository.Stores, room *models.Room, now time.Time) (bool, error) {
		idx := room.ParticipantIndex(callerID)
		if idx < 0 {
			return false, ErrNotParticipant
		}
		room.Participants[idx].LastSeenAt = now
		room.Messages = append(room.Messages, models.RoomMessage{
			ID:         uuid.NewString(),
			SenderID:   callerID,
			SenderName: room.Participants[idx].DisplayName,
			Text:       clean,
			Type:       models.MessageTypeUser,
			Timestamp:  now,
		})
		return true, nil
	})
	if err == nil {
		observability.RoomMessages().WithLabelValues(models.MessageTypeUser).Inc()
	}
	return room, err
}

func (s *roomService) CreateChallenge(ctx context.Context, roomID, callerID string, req dto.CreateChallengeRequest) (models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Room{}, err
	}

	theme, task, err := s.catalog.Task(ctx, req.ThemeID, req.TaskID)
	if err != nil {
		return models.Room{}, err
	}

	return s.apply(ctx, "challenge", roomID, callerID, func(_ repository.Stores, room *models.Room, now time.Time) (bool, error) {
		challengerIdx := room.ParticipantIndex(callerID)
		if challengerIdx < 0 {
			return false, ErrNotParticipant
		}
		if len(room.Participants) < 2 {
			return false, ErrOpponentRequired
		}
		if room.Challenge().InProgress() {
			return false, ErrChallengeInProgress
		}

		challengedID := strings.TrimSpace(req.ChallengedID)
		if challengedID == "" {
			for _, participant := range room.Participants {
				if participant.UserID != callerID {
					challengedID = participant.UserID
					break
				}
			}
		}
		challengedIdx := room.ParticipantIndex(challengedID)
		if challengedIdx < 0 || challengedID == callerID {
			return false, ErrInvalidOpponent
		}

		room.SetChallenge(&models.Challenge{
			ID:           uuid.NewString(),
			ThemeID:      theme.ID,
			TaskID:       task.ID,
			TaskTitle:    task.Title,
			CoinReward:   task.CoinReward,
			ChallengerID: callerID,
			ChallengedID: challengedID,
			Status:       models.ChallengeStatusPending,
			SuggestedAt:  now,
		})
		room.Messages = append(room.Messages, systemMessage(fmt.Sprintf("%s challenged %s to %q for %d coins",
			room.Participants[challengerIdx].DisplayName,
			room.Participants[challengedIdx].DisplayName,
			task.Title,
			task.CoinReward,
		), now))
		return true, nil
	})
}

func (s *roomService) AcceptChallenge(ctx context.Context, roomID, callerID string) (models.Room, error) {
	return s.apply(ctx, "accept", roomID, callerID, func(_ repository.Stores, room *models.Room, now time.Time) (bool, error) {
		challenge, err := respondableChallenge(room, callerID)
		if err != nil {
			return false, err
		}
		challenge.Status = models.ChallengeStatusAccepted
		challenge.RespondedAt = &now
		room.SetChallenge(challenge)
		room.Messages = append(room.Messages, systemMessage(fmt.Sprintf("%s accepted the challenge. Go!", participantName(room, callerID)), now))
		return true, nil
	})
}

func (s *roomService) RejectChallenge(ctx context.Context, roomID, callerID string) (models.Room, error) {
	room, err := s.apply(ctx, "reject", roomID, callerID, func(_ repository.Stores, room *models.Room, now time.Time) (bool, error) {
		challenge, err := respondableChallenge(room, callerID)
		if err != nil {
			return false, err
		}
		challenge.Status = models.ChallengeStatusRejected
		challenge.RespondedAt = &now
		room.SetChallenge(challenge)
		room.Messages = append(room.Messages, systemMessage(fmt.Sprintf("%s declined the challenge", participantName(room, callerID)), now))
		return true, nil
	})
	if err != nil {
		return room, err
	}

	s.scheduleReset(room, s.config.RejectResetDelay)
	return room, nil
}

// CompleteChallenge settles an accepted challenge. The reward grant and the room write share one
// transaction and the room write is version checked, so the reward is paid once.
func (s *roomService) CompleteChallenge(ctx context.Context, roomID, callerID string) (models.Room, error) {
	var reward int
	room, err := s.apply(ctx, "complete", roomID, callerID, func(stores repository.Stores, room *models.Room, now time.Time) (bool, error) {
		challenge := room.Challenge()
		if challenge == nil {
			return false, ErrNoChallenge
		}
		if !challenge.Involves(callerID) {
			return false, ErrNotChallengeParty
		}
		if challenge.Status != models.ChallengeStatusAccepted {
			return false, ErrInvalidTransition
		}

		winner := callerID
		challenge.Status = models.ChallengeStatusCompleted
		challenge.WinnerID = &winner
		challenge.CompletedAt = &now
		room.SetChallenge(challenge)

		if idx := room.ParticipantIndex(callerID); idx >= 0 {
			room.Participants[idx].Score += challenge.CoinReward
			room.Participants[idx].LastSeenAt = now
		}

		if _, err := stores.Profiles.Ensure(ctx, callerID); err != nil {
			return false, fmt.Errorf("load winner profile: %w", err)
		}
		if err := stores.Profiles.Grant(ctx, callerID, challenge.CoinReward, challenge.CoinReward); err != nil {
			return false, fmt.Errorf("grant reward: %w", err)
		}
		reward = challenge.CoinReward

		room.Messages = append(room.Messages, systemMessage(fmt.Sprintf("%s completed %q and won %d coins!",
			participantName(room, callerID), challenge.TaskTitle, challenge.CoinReward), now))
		return true, nil
	})
	if err != nil {
		return room, err
	}

	observability.CoinsGranted().WithLabelValues("challenge").Add(float64(reward))
	if s.scores != nil {
		s.scores.Record(ctx, callerID)
	}
	s.scheduleReset(room, s.config.CompleteResetDelay)
	return room, nil
}

// ResetChallenge clears the challenge only if it is still the given settled challenge.
func (s *roomService) ResetChallenge(ctx context.Context, roomID, challengeID string) (models.Room, error) {
	return s.apply(ctx, "reset", roomID, "", func(_ repository.Stores, room *models.Room, _ time.Time) (bool, error) {
		challenge := room.Challenge()
		if challenge == nil || challenge.ID != challengeID || !challenge.Settled() {
			return false, nil
		}
		room.SetChallenge(nil)
		return true, nil
	})
}

func (s *roomService) scheduleReset(room models.Room, delay time.Duration) {
	challenge := room.Challenge()
	if challenge == nil || s.delayer == nil {
		return
	}

	roomID, challengeID := room.ID, challenge.ID
	err := s.delayer.After("room-reset:"+roomID, delay, func(ctx context.Context) {
		if _, err := s.ResetChallenge(ctx, roomID, challengeID); err != nil && !errors.Is(err, ErrRoomNotFound) {
			s.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to reset challenge")
		}
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to schedule challenge reset")
	}
}

func (s *roomService) apply(ctx context.Context, action, roomID, callerID string, change roomChange) (models.Room, error) {
	room, changed, err := s.mutate(ctx, action, roomID, callerID, change)
	if err == nil && changed {
		s.publishUpdate(ctx, room)
	}
	return room, err
}

// applyQuiet persists without notifying subscribers.
func (s *roomService) applyQuiet(ctx context.Context, action, roomID, callerID string, change roomChange) (models.Room, error) {
	room, _, err := s.mutate(ctx, action, roomID, callerID, change)
	return room, err
}

// mutate runs load, validate, apply and a version-checked save, retrying the whole cycle when
// another writer saved first.
func (s *roomService) mutate(ctx context.Context, action, roomID, callerID string, change roomChange) (models.Room, bool, error) {
	ctx, span := s.tracer.Start(ctx, "room."+action, trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("room.caller_id", callerID),
	))
	defer span.End()

	for attempt := 1; attempt <= roomSaveAttempts; attempt++ {
		var (
			result  models.Room
			changed bool
		)

		err := s.uow.Do(ctx, func(stores repository.Stores) error {
			room, err := stores.Rooms.Get(ctx, roomID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRoomNotFound
				}
				return err
			}

			expected := room.Version
			ok, err := change(stores, &room, s.now())
			if err != nil {
				return err
			}
			result, changed = room, ok
			if !ok {
				return nil
			}

			room.UpdatedAt = s.now()
			if err := stores.Rooms.Save(ctx, &room, expected); err != nil {
				return err
			}
			result = room
			return nil
		})

		switch {
		case err == nil:
			label := "ok"
			if !changed {
				label = "noop"
			}
			observability.RoomTransitions().WithLabelValues(action, label).Inc()
			return result, changed, nil
		case errors.Is(err, repository.ErrRoomVersionConflict):
			observability.RoomTransitions().WithLabelValues(action, "conflict").Inc()
			s.logger.Debug().Str("room_id", roomID).Str("action", action).Int("attempt", attempt).Msg("room version conflict, retrying")
			continue
		default:
			observability.RoomTransitions().WithLabelValues(action, "rejected").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return models.Room{}, false, err
		}
	}

	span.SetStatus(codes.Error, ErrRoomBusy.Error())
	return models.Room{}, false, ErrRoomBusy
}

func (s *roomService) publishUpdate(ctx context.Context, room models.Room) {
	if s.publisher == nil {
		return
	}
	snapshot := dto.NewRoomResponse(room)
	s.publisher.Publish(ctx, dto.RoomEvent{
		Type:   dto.RoomEventUpdated,
		RoomID: room.ID,
		Room:   &snapshot,
		SentAt: s.now(),
	})
}

func respondableChallenge(room *models.Room, callerID string) (*models.Challenge, error) {
	challenge := room.Challenge()
	if challenge == nil {
		return nil, ErrNoChallenge
	}
	if challenge.ChallengedID != callerID {
		return nil, ErrNotChallenged
	}
	if challenge.Status != models.ChallengeStatusPending {
		return nil, ErrInvalidTransition
	}
	return challenge, nil
}

// removeParticipant drops the user, clears a running challenge they were part of and
// closes the room once it is empty. It reports whether anything changed.
func removeParticipant(room *models.Room, userID string, now time.Time, verb string) bool {
	idx := room.ParticipantIndex(userID)
	if idx < 0 {
		return false
	}

	name := room.Participants[idx].DisplayName
	room.Participants = append(room.Participants[:idx], room.Participants[idx+1:]...)
	room.Messages = append(room.Messages, systemMessage(fmt.Sprintf("%s %s", name, verb), now))

	if challenge := room.Challenge(); challenge.InProgress() && challenge.Involves(userID) {
		room.SetChallenge(nil)
		room.Messages = append(room.Messages, systemMessage("The challenge was cancelled", now))
	}

	if len(room.Participants) == 0 {
		room.IsActive = false
		room.Status = models.RoomStatusCompleted
		room.Participants = []models.Participant{}
	}
	room.CurrentPlayers = len(room.Participants)
	return true
}

func newParticipant(profile models.UserProfile, now time.Time) models.Participant {
	return models.Participant{
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName(),
		Avatar:      profile.Avatar,
		JoinedAt:    now,
		LastSeenAt:  now,
	}
}

func participantName(room *models.Room, userID string) string {
	if idx := room.ParticipantIndex(userID); idx >= 0 {
		return room.Participants[idx].DisplayName
	}
	return userID
}

func systemMessage(text string, now time.Time) models.RoomMessage {
	return models.RoomMessage{
		ID:        uuid.NewString(),
		SenderID:  models.SystemSenderID,
		Text:      text,
		Type:      models.MessageTypeSystem,
		Timestamp: now,
	}
}
