package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/observability"
	"github.com/noah-isme/questkids-api/internal/repository"
)

var (
	// ErrProfileNotFound indicates the user has no profile yet.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrTaskAlreadyCompleted indicates the reward for the task was already paid out.
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	// ErrSelfFriend indicates a user tried to befriend themselves.
	ErrSelfFriend = errors.New("you cannot add yourself as a friend")
)

// ProfileService manages user profiles and solo quest progress.
type ProfileService interface {
	EnsureProfile(ctx context.Context, userID, username string) (dto.ProfileResponse, error)
	Profile(ctx context.Context, userID string) (dto.ProfileResponse, error)
	CompleteQuestTask(ctx context.Context, userID string, req dto.CompleteTaskRequest) (dto.TaskCompletionResponse, error)
	AddFriend(ctx context.Context, userID string, req dto.AddFriendRequest) (dto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (dto.ProfileResponse, error)
	UploadAvatar(ctx context.Context, userID string, req dto.AvatarUploadRequest) (dto.ProfileResponse, error)
}

type profileService struct {
	uow       repository.UnitOfWork
	profiles  repository.ProfileRepository
	catalog   CatalogService
	scores    ScoreRecorder
	avatars   AvatarUploader
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProfileService constructs the profile service. Scores and avatars may be nil.
func NewProfileService(uow repository.UnitOfWork, profiles repository.ProfileRepository, catalog CatalogService, scores ScoreRecorder, avatars AvatarUploader, validate *validator.Validate, logger zerolog.Logger) ProfileService {
	return &profileService{
		uow:       uow,
		profiles:  profiles,
		catalog:   catalog,
		scores:    scores,
		avatars:   avatars,
		validator: validate,
		logger:    logger.With().Str("component", "profile_service").Logger(),
	}
}

// EnsureProfile creates the profile on first access and fills in the username once.
func (s *profileService) EnsureProfile(ctx context.Context, userID, username string) (dto.ProfileResponse, error) {
	profile, err := s.profiles.Ensure(ctx, userID)
	if err != nil {
		return dto.ProfileResponse{}, fmt.Errorf("ensure profile: %w", err)
	}

	username = strings.TrimSpace(username)
	if profile.Username == "" && username != "" {
		profile.Username = username
		if err := s.profiles.Save(ctx, &profile); err != nil {
			return dto.ProfileResponse{}, fmt.Errorf("save profile: %w", err)
		}
	}
	return dto.NewProfileResponse(profile), nil
}

func (s *profileService) Profile(ctx context.Context, userID string) (dto.ProfileResponse, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, ErrProfileNotFound
		}
		return dto.ProfileResponse{}, err
	}
	return dto.NewProfileResponse(profile), nil
}

// CompleteQuestTask records a solo completion and pays the task reward once per task.
func (s *profileService) CompleteQuestTask(ctx context.Context, userID string, req dto.CompleteTaskRequest) (dto.TaskCompletionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TaskCompletionResponse{}, err
	}

	_, task, err := s.catalog.Task(ctx, req.ThemeID, req.TaskID)
	if err != nil {
		return dto.TaskCompletionResponse{}, err
	}
	if _, err := s.profiles.Ensure(ctx, userID); err != nil {
		return dto.TaskCompletionResponse{}, fmt.Errorf("ensure profile: %w", err)
	}

	var (
		updated   models.UserProfile
		leveledUp bool
	)
	err = s.uow.Do(ctx, func(stores repository.Stores) error {
		profile, err := stores.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if profile.HasCompleted(task.ID) {
			return ErrTaskAlreadyCompleted
		}

		before := models.LevelFor(profile.Experience)
		profile.CompletedTasks = append(profile.CompletedTasks, task.ID)
		profile.Coins += task.CoinReward
		profile.Experience += task.CoinReward
		if err := stores.Profiles.Save(ctx, &profile); err != nil {
			return err
		}

		updated = profile
		leveledUp = profile.Level > before
		return nil
	})
	if err != nil {
		return dto.TaskCompletionResponse{}, err
	}

	observability.CoinsGranted().WithLabelValues("quest").Add(float64(task.CoinReward))
	if s.scores != nil {
		s.scores.Record(ctx, userID)
	}
	s.logger.Info().Str("user_id", userID).Str("task_id", task.ID).Int("coins", task.CoinReward).Msg("quest task completed")

	return dto.TaskCompletionResponse{
		Profile:     dto.NewProfileResponse(updated),
		CoinsEarned: task.CoinReward,
		LeveledUp:   leveledUp,
	}, nil
}

func (s *profileService) AddFriend(ctx context.Context, userID string, req dto.AddFriendRequest) (dto.ProfileResponse, error) {
	req.FriendID = strings.TrimSpace(req.FriendID)
	if err := s.validator.Struct(req); err != nil {
		return dto.ProfileResponse{}, err
	}
	if req.FriendID == userID {
		return dto.ProfileResponse{}, ErrSelfFriend
	}
	if _, err := s.profiles.Get(ctx, req.FriendID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, ErrProfileNotFound
		}
		return dto.ProfileResponse{}, err
	}

	return s.update(ctx, userID, func(profile *models.UserProfile) {
		if !profile.HasFriend(req.FriendID) {
			profile.Friends = append(profile.Friends, req.FriendID)
		}
	})
}

func (s *profileService) UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (dto.ProfileResponse, error) {
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ProfileResponse{}, err
	}

	return s.update(ctx, userID, func(profile *models.UserProfile) {
		if req.Username != nil {
			profile.Username = *req.Username
		}
		if req.Avatar != nil {
			profile.Avatar = strings.TrimSpace(*req.Avatar)
		}
	})
}

func (s *profileService) UploadAvatar(ctx context.Context, userID string, req dto.AvatarUploadRequest) (dto.ProfileResponse, error) {
	if s.avatars == nil {
		return dto.ProfileResponse{}, ErrUploadUnavailable
	}
	url, err := s.avatars.Upload(ctx, userID, req.Data)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	return s.update(ctx, userID, func(profile *models.UserProfile) {
		profile.Avatar = url
	})
}

func (s *profileService) update(ctx context.Context, userID string, apply func(profile *models.UserProfile)) (dto.ProfileResponse, error) {
	if _, err := s.profiles.Ensure(ctx, userID); err != nil {
		return dto.ProfileResponse{}, fmt.Errorf("ensure profile: %w", err)
	}

	var updated models.UserProfile
	err := s.uow.Do(ctx, func(stores repository.Stores) error {
		profile, err := stores.Profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		apply(&profile)
		if err := stores.Profiles.Save(ctx, &profile); err != nil {
			return err
		}
		updated = profile
		return nil
	})
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	return dto.NewProfileResponse(updated), nil
}
